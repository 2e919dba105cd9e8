package hiring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

// CreateJob publishes a job owned by hrID. Questions keep the order given
// unless they carry an explicit display order.
func (s *Service) CreateJob(ctx context.Context, hrID int64, job *models.Job) (*models.Job, error) {
	hr, err := s.store.GetUserByID(ctx, hrID)
	if err != nil {
		return nil, err
	}
	if hr == nil || hr.Role != models.RoleHR {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(job.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidJob)
	}
	for i := range job.Questions {
		q := &job.Questions[i]
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrInvalidJob, i+1)
		}
		if q.MaxLength != nil && *q.MaxLength < 1 {
			return nil, fmt.Errorf("%w: question %d max length must be positive", ErrInvalidJob, i+1)
		}
		if q.DisplayOrder == 0 {
			q.DisplayOrder = i + 1
		}
	}

	job.HRID = hrID
	if job.Status == "" {
		job.Status = models.JobOpen
	}
	job.Active = job.Status == models.JobOpen
	if _, err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job created", "job_id", job.ID, "hr_id", hrID)
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, hrID int64) ([]models.Job, error) {
	jobs, err := s.store.ListJobsByHR(ctx, hrID)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	return jobs, nil
}

// OpenJobsQuery filters the job board. DatePosted is one of 24h, 7d or 30d;
// other values are ignored. Page is zero based.
type OpenJobsQuery struct {
	Title      string
	Location   string
	DatePosted string
	Page       int
	Size       int
}

// JobSummary is a job board entry. HasApplied is set for the viewing candidate.
type JobSummary struct {
	models.Job
	HasApplied bool `json:"has_applied"`
}

type JobPage struct {
	Items []JobSummary `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}

var postedWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ListOpenJobs returns the jobs currently accepting applications, newest
// first. viewerID marks jobs the candidate already applied to; 0 skips it.
func (s *Service) ListOpenJobs(ctx context.Context, viewerID int64, q OpenJobsQuery) (*JobPage, error) {
	if q.Size <= 0 {
		q.Size = defaultPageSize
	}
	q.Size = min(q.Size, maxPageSize)
	q.Page = max(q.Page, 0)

	now := s.opts.Now()
	f := repository.JobFilter{
		Now:      now.UnixMilli(),
		Title:    q.Title,
		Location: q.Location,
		Limit:    q.Size,
		Offset:   q.Page * q.Size,
	}
	if d, ok := postedWindows[strings.ToLower(strings.TrimSpace(q.DatePosted))]; ok {
		f.PostedSince = now.Add(-d).UnixMilli()
	}

	jobs, total, err := s.store.ListOpenJobs(ctx, f)
	if err != nil {
		return nil, err
	}

	items := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		item := JobSummary{Job: j}
		if viewerID != 0 {
			if item.HasApplied, err = s.store.ApplicationExists(ctx, j.ID, viewerID); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return &JobPage{Items: items, Total: total, Page: q.Page, Size: q.Size}, nil
}

// GetJob returns a job by id for any authenticated user.
func (s *Service) GetJob(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// SetJobStatus opens or closes a job. A closed job stops accepting
// applications but existing ones keep moving through review.
func (s *Service) SetJobStatus(ctx context.Context, jobID, hrID int64, status models.JobStatus) (*models.Job, error) {
	if status != models.JobOpen && status != models.JobClosed {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidJob, status)
	}
	job, err := s.jobOwnedBy(ctx, s.store, jobID, hrID)
	if err != nil {
		return nil, err
	}
	active := status == models.JobOpen
	if err := s.store.UpdateJobStatus(ctx, jobID, status, active); err != nil {
		return nil, err
	}
	job.Status, job.Active = status, active
	return job, nil
}
