package api

import (
	"github.com/garnizeh/ats/internal/config"
	"github.com/garnizeh/ats/internal/hiring"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
	"github.com/gorilla/mux"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Users     repository.UserRepo
	Schemas   repository.SchemaRepo
	Templates repository.TemplateRepo
	Hiring    *hiring.Service
	Engine    ScoringEngine
	DB        Pinger
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{DB: deps.DB}
	authHandler := NewAuthHandler(deps.Users, cfg.JWTSecret, cfg.TokenDuration)
	jobsHandler := NewJobsHandler(deps.Hiring)
	appsHandler := NewApplicationsHandler(deps.Hiring, cfg.Extract.MaxBytes)
	aiHandler := NewAIHandler(deps.Engine, deps.Schemas, deps.Templates)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	apiV1.HandleFunc("/jobs", jobsHandler.ListOpenJobs).Methods("GET")
	apiV1.HandleFunc("/jobs/{id:[0-9]+}", jobsHandler.GetJob).Methods("GET")

	// Candidate endpoints
	candidate := apiV1.PathPrefix("/candidate").Subrouter()
	candidate.Use(RequireRole(models.RoleCandidate))
	candidate.HandleFunc("/jobs/{id:[0-9]+}/applications", appsHandler.Submit).Methods("POST")
	candidate.HandleFunc("/applications", appsHandler.ListMine).Methods("GET")
	candidate.HandleFunc("/applications/{id:[0-9]+}", appsHandler.GetMine).Methods("GET")
	candidate.HandleFunc("/applications/{id:[0-9]+}/withdraw", appsHandler.Withdraw).Methods("POST")
	candidate.HandleFunc("/dashboard", appsHandler.Dashboard).Methods("GET")

	// HR endpoints
	hr := apiV1.PathPrefix("/hr").Subrouter()
	hr.Use(RequireRole(models.RoleHR))
	hr.HandleFunc("/dashboard", jobsHandler.Dashboard).Methods("GET")
	hr.HandleFunc("/jobs", jobsHandler.CreateJob).Methods("POST")
	hr.HandleFunc("/jobs", jobsHandler.ListJobs).Methods("GET")
	hr.HandleFunc("/jobs/{id:[0-9]+}/status", jobsHandler.SetJobStatus).Methods("PUT")
	hr.HandleFunc("/jobs/{id:[0-9]+}/applications", appsHandler.ListForJob).Methods("GET")
	hr.HandleFunc("/jobs/{id:[0-9]+}/shortlist", appsHandler.ShortlistTop).Methods("POST")
	hr.HandleFunc("/jobs/{id:[0-9]+}/export", appsHandler.Export).Methods("GET")
	hr.HandleFunc("/applications/{id:[0-9]+}", appsHandler.Detail).Methods("GET")
	hr.HandleFunc("/applications/{id:[0-9]+}/actions", appsHandler.Actions).Methods("GET")
	hr.HandleFunc("/applications/{id:[0-9]+}/status", appsHandler.Transition).Methods("PUT")

	// Scoring administration
	aiV1 := hr.PathPrefix("/ai").Subrouter()
	aiV1.HandleFunc("/reload", aiHandler.ReloadHandler).Methods("POST")
	aiV1.HandleFunc("/score", aiHandler.ScoreHandler).Methods("POST")
	aiV1.HandleFunc("/schemas", aiHandler.ListSchemasHandler).Methods("GET")
	aiV1.HandleFunc("/schema", aiHandler.GetSchemaHandler).Methods("GET")
	aiV1.HandleFunc("/schema", aiHandler.CreateOrUpdateSchemaHandler).Methods("POST")
	aiV1.HandleFunc("/schema", aiHandler.DeleteSchemaHandler).Methods("DELETE")
	aiV1.HandleFunc("/templates", aiHandler.ListTemplatesHandler).Methods("GET")
	aiV1.HandleFunc("/template", aiHandler.GetTemplateHandler).Methods("GET")
	aiV1.HandleFunc("/template", aiHandler.CreateOrUpdateTemplateHandler).Methods("POST")
	aiV1.HandleFunc("/template", aiHandler.DeleteTemplateHandler).Methods("DELETE")

	return r
}
