package hiring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/garnizeh/ats/internal/extract"
	"github.com/garnizeh/ats/internal/lifecycle"
	"github.com/garnizeh/ats/internal/notify"
	"github.com/garnizeh/ats/internal/outbox"
	"github.com/garnizeh/ats/internal/pipeline"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

// AnswerInput is one candidate answer keyed by question id.
type AnswerInput struct {
	QuestionID int64  `json:"question_id"`
	Text       string `json:"answer_text"`
}

type SubmitRequest struct {
	JobID       int64
	CandidateID int64
	Resume      []byte
	Answers     []AnswerInput
}

// Submit records a new application. The resume is stored and its text
// extracted first; the application row, its answers, the evaluation task and
// the acknowledgement notice are then written in a single transaction, so
// scoring only starts for committed applications.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	candidate, err := s.store.GetUserByID(ctx, req.CandidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, ErrNotFound
	}
	if candidate.Role != models.RoleCandidate {
		return nil, fmt.Errorf("%w: only candidates can apply for jobs", ErrForbidden)
	}

	job, err := s.store.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if !job.AcceptsApplications(s.opts.Now().UnixMilli()) {
		return nil, ErrJobClosed
	}

	exists, err := s.store.ApplicationExists(ctx, job.ID, candidate.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateApplication
	}

	ext, err := resumeExt(req.Resume)
	if err != nil {
		return nil, err
	}
	answers, err := validateAnswers(job, req.Answers)
	if err != nil {
		return nil, err
	}

	locator, err := s.resumes.Store(ctx, req.Resume, ext)
	if err != nil {
		return nil, fmt.Errorf("store resume: %w", err)
	}
	text, err := s.extractor.Extract(ctx, req.Resume)
	if err != nil {
		s.discard(ctx, locator)
		return nil, fmt.Errorf("%w: %w", ErrInvalidResume, err)
	}

	app := &models.Application{
		JobID:          job.ID,
		CandidateID:    candidate.ID,
		ResumeLocator:  locator,
		Status:         lifecycle.Initial(),
		SubmittedAt:    s.opts.Now().UnixMilli(),
		Answers:        answers,
		CandidateName:  candidate.Name,
		CandidateEmail: candidate.Email,
		JobTitle:       job.Title,
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		payload := pipeline.EvaluatePayload{ApplicationID: app.ID, ResumeText: text}
		if _, err := outbox.Enqueue(ctx, tx, outbox.TypeEvaluate, payload, s.opts.MaxAttempts); err != nil {
			return fmt.Errorf("enqueue evaluation: %w", err)
		}
		if _, err := outbox.Enqueue(ctx, tx, outbox.TypeNotify, notify.SubmissionNotice(app), s.opts.MaxAttempts); err != nil {
			return fmt.Errorf("enqueue submission notice: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, locator)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}

	s.logger.Info("application submitted", "application_id", app.ID, "job_id", job.ID, "candidate_id", candidate.ID)
	return app, nil
}

func (s *Service) discard(ctx context.Context, locator string) {
	if err := s.resumes.Delete(ctx, locator); err != nil {
		s.logger.Warn("failed to remove orphaned resume", "locator", locator, "err", err)
	}
}

func resumeExt(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: resume is empty", ErrInvalidResume)
	}
	switch extract.Detect(data) {
	case extract.FormatPDF:
		return ".pdf", nil
	case extract.FormatDOCX:
		return ".docx", nil
	}
	return "", fmt.Errorf("%w: only PDF or DOCX resumes are allowed", ErrInvalidResume)
}

// validateAnswers checks answers against the job's questions and returns the
// ones to persist. Blank answers to optional questions are dropped.
func validateAnswers(job *models.Job, in []AnswerInput) ([]models.Answer, error) {
	byQuestion := make(map[int64]string, len(in))
	for _, a := range in {
		if _, dup := byQuestion[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %d answered twice", ErrInvalidAnswers, a.QuestionID)
		}
		byQuestion[a.QuestionID] = a.Text
	}

	known := make(map[int64]bool, len(job.Questions))
	var problems []error
	var out []models.Answer
	for _, q := range job.Questions {
		known[q.ID] = true
		text, ok := byQuestion[q.ID]
		blank := strings.TrimSpace(text) == ""
		if q.Mandatory && (!ok || blank) {
			problems = append(problems, fmt.Errorf("missing answer for mandatory question: %s", q.Text))
			continue
		}
		if q.MaxLength != nil && utf8.RuneCountInString(text) > *q.MaxLength {
			problems = append(problems, fmt.Errorf("answer exceeds max length for question: %s", q.Text))
			continue
		}
		if ok && !blank {
			out = append(out, models.Answer{QuestionID: q.ID, Text: text})
		}
	}
	for _, a := range in {
		if !known[a.QuestionID] {
			problems = append(problems, fmt.Errorf("invalid question id: %d", a.QuestionID))
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAnswers, errors.Join(problems...))
	}
	return out, nil
}
