package hiring

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/garnizeh/ats/internal/lifecycle"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListQuery selects one page of a job's applications. Page is zero based.
type ListQuery struct {
	Statuses []models.Status
	Search   string
	Page     int
	Size     int
}

type Page struct {
	Items []models.Application `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}

// ListForJob returns a job's applications, best score first, for the HR user
// who owns the job.
func (s *Service) ListForJob(ctx context.Context, jobID, hrID int64, q ListQuery) (*Page, error) {
	if _, err := s.jobOwnedBy(ctx, s.store, jobID, hrID); err != nil {
		return nil, err
	}
	if q.Size <= 0 {
		q.Size = defaultPageSize
	}
	q.Size = min(q.Size, maxPageSize)
	q.Page = max(q.Page, 0)

	items, total, err := s.store.ListApplicationsByJob(ctx, jobID, repository.ApplicationFilter{
		Statuses: q.Statuses,
		Search:   q.Search,
		Limit:    q.Size,
		Offset:   q.Page * q.Size,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Application{}
	}
	return &Page{Items: items, Total: total, Page: q.Page, Size: q.Size}, nil
}

// AllForJob returns every application of a job owned by hrID, for exports.
func (s *Service) AllForJob(ctx context.Context, jobID, hrID int64) (*models.Job, []models.Application, error) {
	job, err := s.jobOwnedBy(ctx, s.store, jobID, hrID)
	if err != nil {
		return nil, nil, err
	}
	apps, _, err := s.store.ListApplicationsByJob(ctx, jobID, repository.ApplicationFilter{})
	if err != nil {
		return nil, nil, err
	}
	for i := range apps {
		if apps[i].Evaluation, err = s.store.GetEvaluation(ctx, apps[i].ID); err != nil {
			return nil, nil, err
		}
	}
	return job, apps, nil
}

// Detail is an application with its answers, evaluation and resume link.
type Detail struct {
	models.Application
	JobDescription string          `json:"job_description"`
	ResumeURL      string          `json:"resume_url"`
	Allowed        []models.Status `json:"allowed_transitions,omitempty"`
}

// DetailForHR returns the full view of an application to the owner of its job.
func (s *Service) DetailForHR(ctx context.Context, appID, hrID int64) (*Detail, error) {
	app, err := s.ownedByHR(ctx, s.store, appID, hrID)
	if err != nil {
		return nil, err
	}
	d, err := s.detail(ctx, app)
	if err != nil {
		return nil, err
	}
	d.Allowed = lifecycle.Allowed(app.Status)
	return d, nil
}

// DetailForCandidate returns the application to the candidate who submitted
// it. HR notes are not shown.
func (s *Service) DetailForCandidate(ctx context.Context, appID, candidateID int64) (*Detail, error) {
	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrNotFound
	}
	if app.CandidateID != candidateID {
		return nil, ErrForbidden
	}
	app.HRNotes = nil
	return s.detail(ctx, app)
}

func (s *Service) detail(ctx context.Context, app *models.Application) (*Detail, error) {
	var err error
	if app.Answers, err = s.store.ListAnswers(ctx, app.ID); err != nil {
		return nil, err
	}
	if app.Evaluation, err = s.store.GetEvaluation(ctx, app.ID); err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	d := &Detail{Application: *app, ResumeURL: s.resumeURL(app.ResumeLocator)}
	if job != nil {
		d.JobDescription = job.Description
	}
	return d, nil
}

func (s *Service) resumeURL(locator string) string {
	if s.opts.PublicBaseURL == "" {
		return locator
	}
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + locator
}

// ListForCandidate returns a candidate's applications, newest first.
func (s *Service) ListForCandidate(ctx context.Context, candidateID int64) ([]models.Application, error) {
	apps, err := s.store.ListApplicationsByCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		apps[i].HRNotes = nil
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// Dashboard summarises a candidate's applications.
type Dashboard struct {
	Total        int                   `json:"total_applications"`
	ByStatus     map[models.Status]int `json:"status_breakdown"`
	Recent       []models.Application  `json:"recent_applications"`
	AverageScore *float64              `json:"average_ai_score,omitempty"`
	HighestScore *float64              `json:"highest_ai_score,omitempty"`
}

const recentApplications = 5

func (s *Service) CandidateDashboard(ctx context.Context, candidateID int64) (*Dashboard, error) {
	apps, err := s.ListForCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Total: len(apps), ByStatus: map[models.Status]int{}}
	var sum, best float64
	var scored int
	for _, a := range apps {
		d.ByStatus[a.Status]++
		if a.Score != nil {
			sum += *a.Score
			best = max(best, *a.Score)
			scored++
		}
	}
	if scored > 0 {
		avg := math.Round(sum/float64(scored)*100) / 100
		d.AverageScore, d.HighestScore = &avg, &best
	}

	sort.SliceStable(apps, func(i, j int) bool { return apps[i].SubmittedAt > apps[j].SubmittedAt })
	d.Recent = apps[:min(len(apps), recentApplications)]
	return d, nil
}

// HRDashboard summarises the jobs and applications owned by one HR user.
type HRDashboard struct {
	OpenJobs     int                   `json:"open_jobs"`
	Total        int                   `json:"total_applications"`
	ByStatus     map[models.Status]int `json:"status_breakdown"`
	Trend        []DayCount            `json:"applications_trend"`
	AverageScore *float64              `json:"average_ai_score,omitempty"`
	HighestScore *float64              `json:"highest_ai_score,omitempty"`
	LowestScore  *float64              `json:"lowest_ai_score,omitempty"`
	Recent       []models.Application  `json:"recent_applications"`
}

// DayCount is the number of submissions on one UTC day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

const trendDays = 30

func (s *Service) HRDashboard(ctx context.Context, hrID int64) (*HRDashboard, error) {
	jobs, err := s.store.ListJobsByHR(ctx, hrID)
	if err != nil {
		return nil, err
	}

	d := &HRDashboard{ByStatus: map[models.Status]int{}}
	for _, st := range models.Statuses {
		d.ByStatus[st] = 0
	}

	today := s.opts.Now().UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(trendDays - 1))
	perDay := make([]int, trendDays)

	var apps []models.Application
	for _, j := range jobs {
		if j.Status == models.JobOpen {
			d.OpenJobs++
		}
		batch, _, err := s.store.ListApplicationsByJob(ctx, j.ID, repository.ApplicationFilter{})
		if err != nil {
			return nil, err
		}
		apps = append(apps, batch...)
	}

	var sum, hi, lo float64
	var scored int
	for _, a := range apps {
		d.ByStatus[a.Status]++
		if a.Score != nil {
			v := *a.Score
			if scored == 0 {
				hi, lo = v, v
			}
			hi, lo = max(hi, v), min(lo, v)
			sum += v
			scored++
		}
		day := time.UnixMilli(a.SubmittedAt).UTC().Truncate(24 * time.Hour)
		if i := int(day.Sub(first) / (24 * time.Hour)); !day.Before(first) && i < trendDays {
			perDay[i]++
		}
	}
	d.Total = len(apps)
	if scored > 0 {
		avg := math.Round(sum/float64(scored)*100) / 100
		d.AverageScore, d.HighestScore, d.LowestScore = &avg, &hi, &lo
	}

	d.Trend = make([]DayCount, trendDays)
	for i := range perDay {
		d.Trend[i] = DayCount{Day: first.AddDate(0, 0, i).Format("01-02"), Count: perDay[i]}
	}

	sort.SliceStable(apps, func(i, j int) bool { return apps[i].SubmittedAt > apps[j].SubmittedAt })
	d.Recent = apps[:min(len(apps), recentApplications)]
	if d.Recent == nil {
		d.Recent = []models.Application{}
	}
	return d, nil
}
