package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

// SaveEvaluation writes the scoring result onto the application, upserts the
// single evaluation row and sets ai_processed in one transaction. Only scoring
// columns are touched, so a concurrent status change is never overwritten.
func (r *SQLiteRepo) SaveEvaluation(ctx context.Context, applicationID int64, score float64, summary string, ev *models.Evaluation) error {
	if ev == nil {
		return fmt.Errorf("evaluation is nil")
	}

	return r.atomic(ctx, func(q querier) error {
		ts := now()
		res, err := q.ExecContext(ctx, `UPDATE applications SET ai_score = ?, ai_summary = ?, ai_processed = 1, version = version + 1, updated_at = ? WHERE id = ?`, score, summary, ts, applicationID)
		if err != nil {
			return fmt.Errorf("update application score: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("application %d: %w", applicationID, sql.ErrNoRows)
		}

		_, err = q.ExecContext(ctx, `INSERT INTO ai_evaluations (application_id, strengths, weaknesses, improvement_tips, confidence_score, model_used, created) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(application_id) DO UPDATE SET strengths = excluded.strengths, weaknesses = excluded.weaknesses, improvement_tips = excluded.improvement_tips, confidence_score = excluded.confidence_score, model_used = excluded.model_used, created = excluded.created`,
			applicationID, ev.Strengths, ev.Weaknesses, ev.ImprovementTips, ev.Confidence, ev.ModelUsed, ts)
		if err != nil {
			return fmt.Errorf("upsert evaluation: %w", err)
		}
		ev.ApplicationID = applicationID
		ev.Created = ts

		return nil
	})
}

// GetEvaluation returns the evaluation detail for an application, or nil if scoring never completed.
func (r *SQLiteRepo) GetEvaluation(ctx context.Context, applicationID int64) (*models.Evaluation, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, application_id, strengths, weaknesses, improvement_tips, confidence_score, model_used, created FROM ai_evaluations WHERE application_id = ?`, applicationID)
	var ev models.Evaluation
	var strengths, weaknesses, tips sql.NullString
	var confidence sql.NullFloat64
	if err := row.Scan(&ev.ID, &ev.ApplicationID, &strengths, &weaknesses, &tips, &confidence, &ev.ModelUsed, &ev.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ev.Strengths = strengths.String
	ev.Weaknesses = weaknesses.String
	ev.ImprovementTips = tips.String
	ev.Confidence = confidence.Float64

	return &ev, nil
}

var _ repository.ApplicationRepo = (*SQLiteRepo)(nil)
