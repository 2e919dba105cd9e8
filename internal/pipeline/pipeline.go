// Package pipeline scores applications and persists the outcome. Scoring is
// driven by the outbox after a submission commits and by the recovery sweep
// for anything left unprocessed.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/ats/internal/ai"
	imodels "github.com/garnizeh/ats/internal/models"
	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

var (
	// ErrNotFound means the application no longer exists. Not retriable.
	ErrNotFound = errors.New("application not found")
	// ErrScoringFailed wraps model and parse failures. The application stays
	// unprocessed for the next sweep.
	ErrScoringFailed = errors.New("scoring failed")
)

// Scorer produces an evaluation for one application.
type Scorer interface {
	Score(ctx context.Context, in ai.ScoringInput) (*ai.Result, error)
	Model() string
}

// EvaluatePayload is the outbox payload of an evaluate task.
type EvaluatePayload struct {
	ApplicationID int64  `json:"application_id"`
	ResumeText    string `json:"resume_text"`
}

type Coordinator struct {
	store  repository.Store
	scorer Scorer
	logger *slog.Logger
}

func NewCoordinator(store repository.Store, scorer Scorer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, scorer: scorer, logger: logger}
}

// Evaluate scores one application and, on success, writes score, summary,
// evaluation detail and the processed flag atomically. Already processed
// applications are skipped. On any failure nothing is written.
func (c *Coordinator) Evaluate(ctx context.Context, appID int64, resumeText string) error {
	log := c.logger.With("application_id", appID)

	app, err := c.store.GetApplication(ctx, appID)
	if err != nil {
		return fmt.Errorf("load application %d: %w", appID, err)
	}
	if app == nil {
		log.Warn("application not found, dropping evaluation")
		return fmt.Errorf("application %d: %w", appID, ErrNotFound)
	}
	if app.Processed {
		log.Debug("application already processed")
		return nil
	}

	in, err := c.input(ctx, app, resumeText)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resumeText) == "" {
		log.Warn("resume text is empty, scoring on answers only")
	}

	res, err := c.scorer.Score(ctx, in)
	if err != nil {
		log.Error("scoring failed", "err", err)
		return fmt.Errorf("application %d: %w: %w", appID, ErrScoringFailed, err)
	}

	ev := &models.Evaluation{
		Strengths:       res.Strengths,
		Weaknesses:      res.Weaknesses,
		ImprovementTips: res.ImprovementTips,
		Confidence:      res.Confidence,
		ModelUsed:       c.scorer.Model(),
	}
	if err := c.store.SaveEvaluation(ctx, appID, res.Score, res.Summary, ev); err != nil {
		return fmt.Errorf("save evaluation for application %d: %w", appID, err)
	}

	log.Info("application scored", "score", res.Score, "model", ev.ModelUsed)
	return nil
}

func (c *Coordinator) input(ctx context.Context, app *models.Application, resumeText string) (ai.ScoringInput, error) {
	job, err := c.store.GetJob(ctx, app.JobID)
	if err != nil {
		return ai.ScoringInput{}, fmt.Errorf("load job %d: %w", app.JobID, err)
	}
	if job == nil {
		return ai.ScoringInput{}, fmt.Errorf("job %d for application %d: %w", app.JobID, app.ID, ErrNotFound)
	}

	answers, err := c.store.ListAnswers(ctx, app.ID)
	if err != nil {
		return ai.ScoringInput{}, fmt.Errorf("load answers: %w", err)
	}

	in := ai.ScoringInput{
		JobTitle:       job.Title,
		JobDescription: job.Description,
		ResumeText:     resumeText,
		Answers:        make([]ai.QA, 0, len(answers)),
	}
	for _, a := range answers {
		in.Answers = append(in.Answers, ai.QA{Question: a.QuestionText, Answer: a.Text})
	}

	return in, nil
}

// HandleTask runs an evaluate task from the outbox. Scoring failures and
// missing applications are logged and swallowed; the sweep retries them.
// Only storage errors go back to the outbox for its own retry.
func (c *Coordinator) HandleTask(ctx context.Context, t *imodels.Task) error {
	var p EvaluatePayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return fmt.Errorf("decode evaluate payload: %w", err)
	}

	err := c.Evaluate(ctx, p.ApplicationID, p.ResumeText)
	if errors.Is(err, ErrScoringFailed) || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
