package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/garnizeh/ats/internal/hiring"
	"github.com/garnizeh/ats/pkg/models"
)

type JobsHandler struct {
	svc *hiring.Service
}

func NewJobsHandler(svc *hiring.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

type questionRequest struct {
	Text         string `json:"question_text"`
	Mandatory    bool   `json:"mandatory"`
	MaxLength    *int   `json:"max_length,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

type jobRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Deadline    *int64            `json:"application_deadline,omitempty"`
	Status      models.JobStatus  `json:"status,omitempty"`
	Questions   []questionRequest `json:"questions"`
}

// CreateJob stores a posting with its screening questions for the calling HR user.
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	hrID, _, _ := UserFromContext(r.Context())

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	job := &models.Job{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Deadline:    req.Deadline,
		Status:      req.Status,
	}
	for _, q := range req.Questions {
		job.Questions = append(job.Questions, models.Question{
			Text:         q.Text,
			Mandatory:    q.Mandatory,
			MaxLength:    q.MaxLength,
			DisplayOrder: q.DisplayOrder,
		})
	}

	created, err := h.svc.CreateJob(r.Context(), hrID, job)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, created, http.StatusCreated)
}

func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	hrID, _, _ := UserFromContext(r.Context())

	jobs, err := h.svc.ListJobs(r.Context(), hrID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, jobs, http.StatusOK)
}

// ListOpenJobs is the job board: postings still accepting applications,
// filtered by title, location and date_posted, with page and size.
func (h *JobsHandler) ListOpenJobs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := hiring.OpenJobsQuery{
		Title:      strings.TrimSpace(values.Get("title")),
		Location:   strings.TrimSpace(values.Get("location")),
		DatePosted: values.Get("date_posted"),
	}
	for name, dst := range map[string]*int{"page": &q.Page, "size": &q.Size} {
		v := values.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid "+name, http.StatusBadRequest)
			return
		}
		*dst = n
	}

	var viewerID int64
	if id, role, ok := UserFromContext(r.Context()); ok && role == models.RoleCandidate {
		viewerID = id
	}

	page, err := h.svc.ListOpenJobs(r.Context(), viewerID, q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, page, http.StatusOK)
}

func (h *JobsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	hrID, _, _ := UserFromContext(r.Context())

	d, err := h.svc.HRDashboard(r.Context(), hrID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, job, http.StatusOK)
}

type jobStatusRequest struct {
	Status models.JobStatus `json:"status"`
}

// SetJobStatus opens or closes a posting.
func (h *JobsHandler) SetJobStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	var req jobStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	job, err := h.svc.SetJobStatus(r.Context(), id, hrID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, job, http.StatusOK)
}
