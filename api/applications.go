package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/garnizeh/ats/internal/export"
	"github.com/garnizeh/ats/internal/hiring"
	"github.com/garnizeh/ats/pkg/models"
)

const defaultMaxResumeBytes = 10 << 20

type ApplicationsHandler struct {
	svc            *hiring.Service
	maxResumeBytes int64
	now            func() time.Time
}

// NewApplicationsHandler serves both the candidate and the HR side of the
// application lifecycle. maxResumeBytes <= 0 selects a 10 MiB limit.
func NewApplicationsHandler(svc *hiring.Service, maxResumeBytes int64) *ApplicationsHandler {
	if maxResumeBytes <= 0 {
		maxResumeBytes = defaultMaxResumeBytes
	}
	return &ApplicationsHandler{svc: svc, maxResumeBytes: maxResumeBytes, now: time.Now}
}

// Submit accepts a multipart form with a "resume" file and an optional
// "answers" field holding a JSON array of {question_id, answer_text}.
func (h *ApplicationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	candidateID, _, _ := UserFromContext(r.Context())

	// room for the answers field and multipart framing on top of the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxResumeBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxResumeBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "resume too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("resume")
	if err != nil {
		http.Error(w, "resume file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxResumeBytes+1))
	if err != nil {
		http.Error(w, "read resume failed", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.maxResumeBytes {
		http.Error(w, "resume too large", http.StatusRequestEntityTooLarge)
		return
	}

	var answers []hiring.AnswerInput
	if raw := r.FormValue("answers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			http.Error(w, "invalid answers json", http.StatusBadRequest)
			return
		}
	}

	app, err := h.svc.Submit(r.Context(), hiring.SubmitRequest{
		JobID:       jobID,
		CandidateID: candidateID,
		Resume:      data,
		Answers:     answers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, app, http.StatusCreated)
}

func (h *ApplicationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	candidateID, _, _ := UserFromContext(r.Context())

	apps, err := h.svc.ListForCandidate(r.Context(), candidateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, apps, http.StatusOK)
}

func (h *ApplicationsHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	candidateID, _, _ := UserFromContext(r.Context())

	d, err := h.svc.DetailForCandidate(r.Context(), appID, candidateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

func (h *ApplicationsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	candidateID, _, _ := UserFromContext(r.Context())

	app, err := h.svc.Withdraw(r.Context(), appID, candidateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, app, http.StatusOK)
}

func (h *ApplicationsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	candidateID, _, _ := UserFromContext(r.Context())

	d, err := h.svc.CandidateDashboard(r.Context(), candidateID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

// ListForJob expects optional query params status (repeated or comma
// separated), search, page (zero based) and size.
func (h *ApplicationsHandler) ListForJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	q, err := parseListQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.svc.ListForJob(r.Context(), jobID, hrID, q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, page, http.StatusOK)
}

func parseListQuery(r *http.Request) (hiring.ListQuery, error) {
	var q hiring.ListQuery
	values := r.URL.Query()

	for _, raw := range values["status"] {
		for _, s := range strings.Split(raw, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			st, ok := models.ParseStatus(s)
			if !ok {
				return q, fmt.Errorf("unknown status %q", s)
			}
			q.Statuses = append(q.Statuses, st)
		}
	}
	q.Search = strings.TrimSpace(values.Get("search"))

	for name, dst := range map[string]*int{"page": &q.Page, "size": &q.Size} {
		v := values.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid %s", name)
		}
		*dst = n
	}

	return q, nil
}

func (h *ApplicationsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	d, err := h.svc.DetailForHR(r.Context(), appID, hrID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, d, http.StatusOK)
}

func (h *ApplicationsHandler) Actions(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	a, err := h.svc.AllowedActions(r.Context(), appID, hrID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, a, http.StatusOK)
}

type transitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Transition moves an application to the requested status.
func (h *ApplicationsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	appID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	next, ok := models.ParseStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !ok {
		http.Error(w, fmt.Sprintf("unknown status %q", req.Status), http.StatusBadRequest)
		return
	}

	app, err := h.svc.Transition(r.Context(), appID, hrID, next, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, app, http.StatusOK)
}

type shortlistRequest struct {
	Count int `json:"count"`
}

// ShortlistTop keeps the best Count eligible applications of a job and
// rejects the rest.
func (h *ApplicationsHandler) ShortlistTop(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	var req shortlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	res, err := h.svc.ShortlistTop(r.Context(), jobID, hrID, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, res, http.StatusOK)
}

// Export streams the job's applications as an XLSX workbook.
func (h *ApplicationsHandler) Export(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	hrID, _, _ := UserFromContext(r.Context())

	job, apps, err := h.svc.AllForJob(r.Context(), jobID, hrID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, job, apps, h.now()); err != nil {
		writeError(w, r, fmt.Errorf("export job %d: %w", jobID, err))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%d-applications.xlsx"`, jobID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("export write interrupted", slog.Int64("job_id", jobID), slog.Any("err", err))
	}
}
