// Package hiring is the application service: it ties the status lifecycle,
// ranking and notifications to the repositories. Every state change and the
// outbox tasks it produces are written in one transaction.
package hiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/ats/internal/lifecycle"
	"github.com/garnizeh/ats/internal/notify"
	"github.com/garnizeh/ats/internal/outbox"
	"github.com/garnizeh/ats/internal/ranking"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDuplicateApplication = errors.New("already applied to this job")
	ErrJobClosed            = errors.New("job is not accepting applications")
	ErrInvalidAnswers       = errors.New("invalid answers")
	ErrInvalidResume        = errors.New("invalid resume")
	ErrInvalidJob           = errors.New("invalid job")

	ErrNoEligibleApplications = ranking.ErrNoEligibleApplications
	ErrInsufficientCandidates = ranking.ErrInsufficientCandidates
)

// conflictRetries bounds re-reads after an optimistic-lock conflict.
const conflictRetries = 3

// ResumeStore keeps resume files.
type ResumeStore interface {
	Store(ctx context.Context, data []byte, ext string) (string, error)
	Delete(ctx context.Context, locator string) error
}

// TextExtractor turns resume bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type Options struct {
	// PublicBaseURL prefixes resume locators in detail views.
	PublicBaseURL string
	// MaxAttempts is the outbox attempt budget for tasks this service enqueues.
	MaxAttempts int
	Now         func() time.Time
	Logger      *slog.Logger
}

type Service struct {
	store     repository.Store
	resumes   ResumeStore
	extractor TextExtractor
	opts      Options
	logger    *slog.Logger
}

func New(store repository.Store, resumes ResumeStore, extractor TextExtractor, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{store: store, resumes: resumes, extractor: extractor, opts: opts, logger: opts.Logger}
}

// Transition moves an application to next on behalf of the HR user who owns
// its job. A self-transition keeps the status and only replaces notes when
// notes is non-blank. Entering SHORTLISTED, HIRED or REJECTED schedules one
// notification in the same transaction.
func (s *Service) Transition(ctx context.Context, appID, actorID int64, next models.Status, notes string) (*models.Application, error) {
	var out *models.Application
	err := s.retryConflict(ctx, func(tx repository.Store) error {
		app, err := s.ownedByHR(ctx, tx, appID, actorID)
		if err != nil {
			return err
		}
		updated, err := s.transition(ctx, tx, app, next, notes)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("application status changed", "application_id", appID, "status", out.Status, "actor_id", actorID)
	return out, nil
}

// transition applies one validated status change on tx. It is shared by the
// single and bulk paths.
func (s *Service) transition(ctx context.Context, tx repository.Store, app *models.Application, next models.Status, notes string) (*models.Application, error) {
	if err := lifecycle.Validate(app.Status, next); err != nil {
		return nil, err
	}

	var notesPtr *string
	if strings.TrimSpace(notes) != "" {
		notesPtr = &notes
	}
	if app.Status == next && notesPtr == nil {
		return app, nil
	}

	prev := app.Status
	if err := tx.UpdateStatus(ctx, app.ID, app.Version, next, notesPtr); err != nil {
		return nil, err
	}
	app.Status = next
	app.Version++
	if notesPtr != nil {
		app.HRNotes = notesPtr
	}

	if lifecycle.Notifies(prev, next) {
		if err := s.enqueueNotice(ctx, tx, app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (s *Service) enqueueNotice(ctx context.Context, tx repository.Store, app *models.Application) error {
	var ev *models.Evaluation
	if app.Status == models.StatusRejected {
		var err error
		if ev, err = tx.GetEvaluation(ctx, app.ID); err != nil {
			return fmt.Errorf("load evaluation: %w", err)
		}
	}
	n, ok := notify.NoticeFor(app.Status, app, ev)
	if !ok {
		return nil
	}
	if _, err := outbox.Enqueue(ctx, tx, outbox.TypeNotify, n, s.opts.MaxAttempts); err != nil {
		return fmt.Errorf("enqueue %s notice: %w", n.Kind, err)
	}
	return nil
}

// Withdraw lets the candidate who owns the application pull it while it is
// still SUBMITTED. No notification is sent.
func (s *Service) Withdraw(ctx context.Context, appID, candidateID int64) (*models.Application, error) {
	var out *models.Application
	err := s.retryConflict(ctx, func(tx repository.Store) error {
		app, err := tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if app == nil {
			return ErrNotFound
		}
		if app.CandidateID != candidateID {
			return ErrForbidden
		}
		if err := lifecycle.ValidateWithdraw(app.Status); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, app.ID, app.Version, models.StatusWithdrawn, nil); err != nil {
			return err
		}
		app.Status = models.StatusWithdrawn
		app.Version++
		out = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("application withdrawn", "application_id", appID)
	return out, nil
}

// Actions is the current status of an application and the statuses HR may
// move it to next.
type Actions struct {
	Current models.Status   `json:"current_status"`
	Allowed []models.Status `json:"allowed_transitions"`
}

func (s *Service) AllowedActions(ctx context.Context, appID, hrID int64) (*Actions, error) {
	app, err := s.ownedByHR(ctx, s.store, appID, hrID)
	if err != nil {
		return nil, err
	}
	return &Actions{Current: app.Status, Allowed: lifecycle.Allowed(app.Status)}, nil
}

// ShortlistResult reports which applications a bulk shortlist advanced and rejected.
type ShortlistResult struct {
	Advanced []int64 `json:"advanced"`
	Rejected []int64 `json:"rejected"`
}

// ShortlistTop keeps the n best-scored SUBMITTED or UNDER_REVIEW applications
// of a job under review and rejects the rest, all in one transaction. Each
// rejection schedules one notification. Nothing changes on error.
func (s *Service) ShortlistTop(ctx context.Context, jobID, hrID int64, n int) (*ShortlistResult, error) {
	var res *ShortlistResult
	err := s.retryConflict(ctx, func(tx repository.Store) error {
		if _, err := s.jobOwnedBy(ctx, tx, jobID, hrID); err != nil {
			return err
		}
		apps, _, err := tx.ListApplicationsByJob(ctx, jobID, repository.ApplicationFilter{
			Statuses: []models.Status{models.StatusSubmitted, models.StatusUnderReview},
		})
		if err != nil {
			return fmt.Errorf("list eligible applications: %w", err)
		}

		advance, reject, err := ranking.Partition(apps, n)
		if err != nil {
			return err
		}

		res = &ShortlistResult{}
		advanceNote := fmt.Sprintf("Auto-selected for review based on Top %d AI Score", n)
		for i := range advance {
			if _, err := s.transition(ctx, tx, &advance[i], models.StatusUnderReview, advanceNote); err != nil {
				return fmt.Errorf("advance application %d: %w", advance[i].ID, err)
			}
			res.Advanced = append(res.Advanced, advance[i].ID)
		}
		rejectNote := fmt.Sprintf("Auto-rejected: Did not make Top %d cut", n)
		for i := range reject {
			if _, err := s.transition(ctx, tx, &reject[i], models.StatusRejected, rejectNote); err != nil {
				return fmt.Errorf("reject application %d: %w", reject[i].ID, err)
			}
			res.Rejected = append(res.Rejected, reject[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bulk shortlist applied", "job_id", jobID, "top", n, "advanced", len(res.Advanced), "rejected", len(res.Rejected))
	return res, nil
}

// retryConflict runs fn in a transaction, rerunning it from a fresh read when
// a version check fails.
func (s *Service) retryConflict(ctx context.Context, fn func(tx repository.Store) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = s.store.InTx(ctx, fn)
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		s.logger.Debug("optimistic lock conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func (s *Service) ownedByHR(ctx context.Context, r repository.Store, appID, hrID int64) (*models.Application, error) {
	app, err := r.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrNotFound
	}
	if _, err := s.jobOwnedBy(ctx, r, app.JobID, hrID); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *Service) jobOwnedBy(ctx context.Context, r repository.Store, jobID, hrID int64) (*models.Job, error) {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.HRID != hrID {
		return nil, ErrForbidden
	}
	return job, nil
}
