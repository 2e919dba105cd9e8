package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/ats/api"
	"github.com/garnizeh/ats/internal/config"
	"github.com/garnizeh/ats/internal/db/dbtest"
	"github.com/garnizeh/ats/internal/hiring"
	"github.com/garnizeh/ats/internal/repository/sqlite"
	"github.com/garnizeh/ats/internal/storage"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/xuri/excelize/v2"
)

type prefixExtractor struct{}

func (prefixExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return strings.TrimPrefix(string(data), "%PDF-"), nil
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func (c *client) do(method, path, token string, body io.Reader, contentType string) (int, []byte) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := c.srv.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

func (c *client) json(method, path, token string, v any) (int, []byte) {
	c.t.Helper()
	var body io.Reader
	if v != nil {
		b, _ := json.Marshal(v)
		body = bytes.NewReader(b)
	}
	return c.do(method, path, token, body, "application/json")
}

func (c *client) signup(name, email string, role models.Role) string {
	c.t.Helper()
	status, data := c.json(http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "pw-" + name, "role": string(role),
	})
	if status != http.StatusCreated {
		c.t.Fatalf("signup %s: %d %s", email, status, data)
	}
	var ar struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &ar); err != nil {
		c.t.Fatalf("decode token: %v", err)
	}
	return ar.Token
}

func (c *client) submit(token string, jobID int64, resume string, answers any) (int, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("resume", "cv.pdf")
	if err != nil {
		c.t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte(resume))
	if answers != nil {
		b, _ := json.Marshal(answers)
		mw.WriteField("answers", string(b))
	}
	mw.Close()
	return c.do(http.MethodPost, fmt.Sprintf("/v1/candidate/jobs/%d/applications", jobID), token, &buf, mw.FormDataContentType())
}

func newServer(t *testing.T) *client {
	t.Helper()
	d := dbtest.Open(t)
	repo := sqlite.New(d, nil)
	files, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	svc := hiring.New(repo, files, prefixExtractor{}, hiring.Options{PublicBaseURL: "http://files.local"})
	cfg := &config.Config{JWTSecret: "route-secret", TokenDuration: time.Hour}

	r := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Users:     repo,
		Schemas:   repo,
		Templates: repo,
		Hiring:    svc,
		Engine:    &fakeEngine{},
		DB:        d.GetConn(),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

func TestRoutes_ApplicationLifecycle(t *testing.T) {
	c := newServer(t)

	hr := c.signup("Hana", "hana@example.com", models.RoleHR)
	alice := c.signup("Alice", "alice@example.com", models.RoleCandidate)
	bob := c.signup("Bob", "bob@example.com", models.RoleCandidate)

	if status, _ := c.json(http.MethodGet, "/v1/hr/jobs", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous list jobs: got %d", status)
	}

	jobReq := map[string]any{
		"title":       "Go Engineer",
		"description": "Build services",
		"questions": []map[string]any{
			{"question_text": "Why Go?", "mandatory": true},
		},
	}
	if status, _ := c.json(http.MethodPost, "/v1/hr/jobs", alice, jobReq); status != http.StatusForbidden {
		t.Fatalf("candidate create job: got %d", status)
	}
	status, data := c.json(http.MethodPost, "/v1/hr/jobs", hr, jobReq)
	if status != http.StatusCreated {
		t.Fatalf("create job: %d %s", status, data)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != models.JobOpen || len(job.Questions) != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
	answers := []map[string]any{{"question_id": job.Questions[0].ID, "answer_text": "Concurrency"}}

	if status, data := c.submit(alice, job.ID, "%PDF-alice", nil); status != http.StatusBadRequest {
		t.Fatalf("missing mandatory answer: %d %s", status, data)
	}
	if status, data := c.submit(alice, job.ID, "plain text", answers); status != http.StatusBadRequest {
		t.Fatalf("unsupported resume: %d %s", status, data)
	}

	status, data = c.submit(alice, job.ID, "%PDF-alice", answers)
	if status != http.StatusCreated {
		t.Fatalf("submit: %d %s", status, data)
	}
	var app models.Application
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("decode app: %v", err)
	}
	if app.Status != models.StatusSubmitted {
		t.Fatalf("new application status %s", app.Status)
	}
	if status, _ := c.submit(alice, job.ID, "%PDF-alice", answers); status != http.StatusConflict {
		t.Fatalf("duplicate submit: got %d", status)
	}
	if status, data := c.submit(bob, job.ID, "%PDF-bob", answers); status != http.StatusCreated {
		t.Fatalf("bob submit: %d %s", status, data)
	}

	status, data = c.json(http.MethodGet, fmt.Sprintf("/v1/hr/jobs/%d/applications?status=SUBMITTED&search=alice", job.ID), hr, nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, data)
	}
	var page hiring.Page
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != app.ID {
		t.Fatalf("unexpected page %+v", page)
	}
	if status, _ := c.json(http.MethodGet, fmt.Sprintf("/v1/hr/jobs/%d/applications?status=BOGUS", job.ID), hr, nil); status != http.StatusBadRequest {
		t.Fatalf("bogus status filter: got %d", status)
	}

	appPath := fmt.Sprintf("/v1/hr/applications/%d", app.ID)
	if status, _ := c.json(http.MethodPut, appPath+"/status", hr, map[string]string{"status": "HIRED"}); status != http.StatusConflict {
		t.Fatalf("skip to hired: got %d", status)
	}
	if status, _ := c.json(http.MethodPut, appPath+"/status", hr, map[string]string{"status": "NOPE"}); status != http.StatusBadRequest {
		t.Fatalf("unknown status: got %d", status)
	}
	status, data = c.json(http.MethodPut, appPath+"/status", hr, map[string]string{"status": "UNDER_REVIEW", "notes": "strong profile"})
	if status != http.StatusOK {
		t.Fatalf("to under review: %d %s", status, data)
	}

	status, data = c.json(http.MethodGet, appPath+"/actions", hr, nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"SHORTLISTED"`) {
		t.Fatalf("actions: %d %s", status, data)
	}

	status, data = c.json(http.MethodGet, fmt.Sprintf("/v1/candidate/applications/%d", app.ID), alice, nil)
	if status != http.StatusOK {
		t.Fatalf("candidate detail: %d %s", status, data)
	}
	if strings.Contains(string(data), "strong profile") {
		t.Fatalf("candidate view leaks hr notes: %s", data)
	}
	if status, _ := c.json(http.MethodGet, fmt.Sprintf("/v1/candidate/applications/%d", app.ID), bob, nil); status != http.StatusForbidden {
		t.Fatalf("foreign candidate detail: got %d", status)
	}
	if status, _ := c.json(http.MethodPost, fmt.Sprintf("/v1/candidate/applications/%d/withdraw", app.ID), alice, nil); status != http.StatusConflict {
		t.Fatalf("withdraw under review: got %d", status)
	}

	if status, _ := c.json(http.MethodPost, fmt.Sprintf("/v1/hr/jobs/%d/shortlist", job.ID), hr, map[string]int{"count": 0}); status != http.StatusBadRequest {
		t.Fatalf("shortlist zero: got %d", status)
	}
	if status, _ := c.json(http.MethodPost, fmt.Sprintf("/v1/hr/jobs/%d/shortlist", job.ID), hr, map[string]int{"count": 3}); status != http.StatusUnprocessableEntity {
		t.Fatalf("shortlist more than eligible: got %d", status)
	}
	status, data = c.json(http.MethodPost, fmt.Sprintf("/v1/hr/jobs/%d/shortlist", job.ID), hr, map[string]int{"count": 1})
	if status != http.StatusOK {
		t.Fatalf("shortlist: %d %s", status, data)
	}
	var sr hiring.ShortlistResult
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("decode shortlist: %v", err)
	}
	if len(sr.Advanced) != 1 || len(sr.Rejected) != 1 {
		t.Fatalf("unexpected shortlist %+v", sr)
	}

	status, data = c.json(http.MethodGet, "/v1/candidate/dashboard", alice, nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"total_applications":1`) {
		t.Fatalf("dashboard: %d %s", status, data)
	}

	status, data = c.do(http.MethodGet, fmt.Sprintf("/v1/hr/jobs/%d/export", job.ID), hr, nil, "")
	if status != http.StatusOK {
		t.Fatalf("export: %d %s", status, data)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Applications")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("export rows = %d, want header plus 2", len(rows))
	}
}

func TestRoutes_JobStatus(t *testing.T) {
	c := newServer(t)
	hr := c.signup("Hana", "hana@example.com", models.RoleHR)
	other := c.signup("Omar", "omar@example.com", models.RoleHR)
	cand := c.signup("Cara", "cara@example.com", models.RoleCandidate)

	status, data := c.json(http.MethodPost, "/v1/hr/jobs", hr, map[string]any{"title": "SRE"})
	if status != http.StatusCreated {
		t.Fatalf("create job: %d %s", status, data)
	}
	var job models.Job
	json.Unmarshal(data, &job)

	statusPath := fmt.Sprintf("/v1/hr/jobs/%d/status", job.ID)
	if status, _ := c.json(http.MethodPut, statusPath, other, map[string]string{"status": "CLOSED"}); status != http.StatusForbidden {
		t.Fatalf("foreign close: got %d", status)
	}
	if status, _ := c.json(http.MethodPut, statusPath, hr, map[string]string{"status": "PAUSED"}); status != http.StatusBadRequest {
		t.Fatalf("bad job status: got %d", status)
	}
	if status, _ := c.json(http.MethodPut, statusPath, hr, map[string]string{"status": "CLOSED"}); status != http.StatusOK {
		t.Fatalf("close: got %d", status)
	}

	if status, _ := c.submit(cand, job.ID, "%PDF-cara", nil); status != http.StatusConflict {
		t.Fatalf("submit to closed job: got %d", status)
	}
	if status, _ := c.json(http.MethodGet, fmt.Sprintf("/v1/jobs/%d", job.ID), cand, nil); status != http.StatusOK {
		t.Fatalf("candidate get job: got %d", status)
	}
	if status, _ := c.json(http.MethodGet, "/v1/jobs/9999", cand, nil); status != http.StatusNotFound {
		t.Fatalf("missing job: got %d", status)
	}
}

func TestRoutes_JobBoardAndHRDashboard(t *testing.T) {
	c := newServer(t)
	hr := c.signup("Hana", "hana@example.com", models.RoleHR)
	cand := c.signup("Cara", "cara@example.com", models.RoleCandidate)

	create := func(body map[string]any) models.Job {
		t.Helper()
		status, data := c.json(http.MethodPost, "/v1/hr/jobs", hr, body)
		if status != http.StatusCreated {
			t.Fatalf("create job: %d %s", status, data)
		}
		var job models.Job
		json.Unmarshal(data, &job)
		return job
	}
	goJob := create(map[string]any{"title": "Go Developer", "description": "APIs", "location": "Lisbon"})
	create(map[string]any{"title": "SRE", "description": "Kubernetes and Go", "location": "Remote"})
	closed := create(map[string]any{"title": "Closed Role", "status": "CLOSED"})

	if status, data := c.submit(cand, goJob.ID, "%PDF-cara", nil); status != http.StatusCreated {
		t.Fatalf("submit: %d %s", status, data)
	}

	board := func(token, query string) hiring.JobPage {
		t.Helper()
		status, data := c.json(http.MethodGet, "/v1/jobs"+query, token, nil)
		if status != http.StatusOK {
			t.Fatalf("job board %q: %d %s", query, status, data)
		}
		var page hiring.JobPage
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("decode page: %v", err)
		}
		return page
	}

	page := board(cand, "")
	if page.Total != 2 || len(page.Items) != 2 || page.Size != 20 {
		t.Fatalf("unexpected board: %+v", page)
	}
	applied := map[string]bool{}
	for _, it := range page.Items {
		if it.ID == closed.ID {
			t.Fatalf("closed job listed")
		}
		applied[it.Title] = it.HasApplied
	}
	if !applied["Go Developer"] || applied["SRE"] {
		t.Fatalf("has_applied wrong: %v", applied)
	}

	if page := board(cand, "?title=kubernetes"); page.Total != 1 || page.Items[0].Title != "SRE" {
		t.Fatalf("title filter: %+v", page)
	}
	if page := board(cand, "?location=lisbon&date_posted=24h"); page.Total != 1 || page.Items[0].Title != "Go Developer" {
		t.Fatalf("location filter: %+v", page)
	}
	if page := board(hr, "?size=1&page=1"); len(page.Items) != 1 || page.Total != 2 || page.Items[0].HasApplied {
		t.Fatalf("paging: %+v", page)
	}
	if status, _ := c.json(http.MethodGet, "/v1/jobs?page=-1", cand, nil); status != http.StatusBadRequest {
		t.Fatalf("negative page: got %d", status)
	}
	if status, _ := c.json(http.MethodGet, "/v1/jobs", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous board: got %d", status)
	}

	if status, _ := c.json(http.MethodGet, "/v1/hr/dashboard", cand, nil); status != http.StatusForbidden {
		t.Fatalf("candidate HR dashboard: got %d", status)
	}
	status, data := c.json(http.MethodGet, "/v1/hr/dashboard", hr, nil)
	if status != http.StatusOK {
		t.Fatalf("HR dashboard: %d %s", status, data)
	}
	var dash hiring.HRDashboard
	if err := json.Unmarshal(data, &dash); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dash.OpenJobs != 2 || dash.Total != 1 || dash.ByStatus[models.StatusSubmitted] != 1 || len(dash.Recent) != 1 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
	if len(dash.Trend) != 30 || dash.Trend[29].Count != 1 || dash.AverageScore != nil {
		t.Fatalf("unexpected trend or scores: %+v", dash)
	}
}
