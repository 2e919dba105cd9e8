package repository

import (
	"context"
	"errors"

	imodels "github.com/garnizeh/ats/internal/models"
	"github.com/garnizeh/ats/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

// ErrConflict is returned when an optimistic-lock check fails because the row
// changed since it was read.
var ErrConflict = errors.New("concurrent modification")

// ErrDuplicate is returned when an insert collides with a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListJobsByHR(ctx context.Context, hrID int64) ([]models.Job, error)
	// ListOpenJobs returns a page of jobs accepting applications at f.Now,
	// newest first, with the total match count.
	ListOpenJobs(ctx context.Context, f JobFilter) ([]models.Job, int, error)
	UpdateJobStatus(ctx context.Context, id int64, status models.JobStatus, active bool) error
}

// JobFilter narrows ListOpenJobs. Title matches title or description; zero
// values mean "no filter".
type JobFilter struct {
	Now         int64
	Title       string
	Location    string
	PostedSince int64
	Limit       int
	Offset      int
}

// ApplicationFilter narrows ListApplicationsByJob. Zero values mean "no filter".
type ApplicationFilter struct {
	Statuses []models.Status
	Search   string
	Limit    int
	Offset   int
}

type ApplicationRepo interface {
	CreateApplication(ctx context.Context, a *models.Application) (int64, error)
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	ApplicationExists(ctx context.Context, jobID, candidateID int64) (bool, error)
	ListApplicationsByJob(ctx context.Context, jobID int64, f ApplicationFilter) ([]models.Application, int, error)
	ListApplicationsByCandidate(ctx context.Context, candidateID int64) ([]models.Application, error)
	ListUnprocessed(ctx context.Context, limit int) ([]models.Application, error)
	ListAnswers(ctx context.Context, applicationID int64) ([]models.Answer, error)
	GetEvaluation(ctx context.Context, applicationID int64) (*models.Evaluation, error)
	// UpdateStatus writes status and, when notes is non-nil, hr_notes. It fails
	// with ErrConflict unless the stored version equals expectedVersion.
	UpdateStatus(ctx context.Context, id, expectedVersion int64, status models.Status, notes *string) error
	// SaveEvaluation writes score and summary, upserts the evaluation detail and
	// marks the application processed as one atomic unit.
	SaveEvaluation(ctx context.Context, applicationID int64, score float64, summary string, ev *models.Evaluation) error
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error)
	GetSchemaByVersion(ctx context.Context, version string) (*imodels.Schema, error)
	ListSchemas(ctx context.Context) ([]imodels.Schema, error)
	DeleteSchema(ctx context.Context, version string) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error)
	GetTemplate(ctx context.Context, name, version string) (*imodels.Template, error)
	ListTemplates(ctx context.Context) ([]imodels.Template, error)
	DeleteTemplate(ctx context.Context, name, version string) error
}

// OutboxRepo persists post-commit tasks.
type OutboxRepo interface {
	EnqueueTask(ctx context.Context, t *imodels.Task) (int64, error)
	ClaimNextTask(ctx context.Context) (*imodels.Task, error)
	UpdateTask(ctx context.Context, t *imodels.Task) error
	MoveTaskToDeadLetter(ctx context.Context, t *imodels.Task) error
	RequeueRunningTasks(ctx context.Context) (int64, error)
}

// Store groups every repository. InTx runs fn against a Store bound to a
// single transaction; fn's writes commit together or not at all.
type Store interface {
	UserRepo
	JobRepo
	ApplicationRepo
	OutboxRepo
	InTx(ctx context.Context, fn func(tx Store) error) error
}
