package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/ats/pkg/models"
	"github.com/garnizeh/ats/pkg/repository"
)

const applicationColumns = `a.id, a.job_id, a.candidate_id, a.resume_locator, a.status, a.ai_score, a.ai_summary, a.hr_notes, a.ai_processed, a.version, a.submitted_at, a.updated_at, u.name, u.email, j.title`

const applicationFrom = ` FROM applications a JOIN users u ON u.id = a.candidate_id JOIN jobs j ON j.id = a.job_id`

// CreateApplication inserts the application and its answers atomically.
func (r *SQLiteRepo) CreateApplication(ctx context.Context, a *models.Application) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("application is nil")
	}

	var id int64
	err := r.atomic(ctx, func(q querier) error {
		ts := now()
		if a.SubmittedAt == 0 {
			a.SubmittedAt = ts
		}
		res, err := q.ExecContext(ctx, `INSERT INTO applications (job_id, candidate_id, resume_locator, status, ai_processed, version, submitted_at, updated_at) VALUES (?, ?, ?, ?, 0, 1, ?, ?)`,
			a.JobID, a.CandidateID, a.ResumeLocator, string(a.Status), a.SubmittedAt, ts)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert application: %w", repository.ErrDuplicate)
			}
			return fmt.Errorf("insert application: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		for i := range a.Answers {
			ans := &a.Answers[i]
			ans.ApplicationID = id
			if _, err := q.ExecContext(ctx, `INSERT INTO application_answers (application_id, question_id, answer_text, created) VALUES (?, ?, ?, ?)`, id, ans.QuestionID, ans.Text, ts); err != nil {
				return fmt.Errorf("insert answer for question %d: %w", ans.QuestionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	a.ID = id
	a.Version = 1

	return id, nil
}

// GetApplication returns the application row with candidate and job names, or nil if missing.
func (r *SQLiteRepo) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	a, err := scanApplication(r.q.QueryRowContext(ctx, `SELECT `+applicationColumns+applicationFrom+` WHERE a.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *SQLiteRepo) ApplicationExists(ctx context.Context, jobID, candidateID int64) (bool, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM applications WHERE job_id = ? AND candidate_id = ?`, jobID, candidateID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListApplicationsByJob returns one page of applications ordered by score
// descending (unscored last), then submission order, plus the total match count.
func (r *SQLiteRepo) ListApplicationsByJob(ctx context.Context, jobID int64, f repository.ApplicationFilter) ([]models.Application, int, error) {
	where := []string{"a.job_id = ?"}
	args := []any{jobID}

	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "a.status IN ("+strings.Join(marks, ",")+")")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ?)")
		args = append(args, like, like)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(1)`+applicationFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	query := `SELECT ` + applicationColumns + applicationFrom + cond + ` ORDER BY a.ai_score IS NULL, a.ai_score DESC, a.submitted_at, a.id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	out, err := r.queryApplications(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *SQLiteRepo) ListApplicationsByCandidate(ctx context.Context, candidateID int64) ([]models.Application, error) {
	return r.queryApplications(ctx, `SELECT `+applicationColumns+applicationFrom+` WHERE a.candidate_id = ? ORDER BY a.submitted_at DESC, a.id DESC`, candidateID)
}

// ListUnprocessed returns applications that have never been scored, oldest first.
func (r *SQLiteRepo) ListUnprocessed(ctx context.Context, limit int) ([]models.Application, error) {
	query := `SELECT ` + applicationColumns + applicationFrom + ` WHERE a.ai_processed = 0 ORDER BY a.submitted_at, a.id`
	if limit > 0 {
		return r.queryApplications(ctx, query+` LIMIT ?`, limit)
	}
	return r.queryApplications(ctx, query)
}

func (r *SQLiteRepo) ListAnswers(ctx context.Context, applicationID int64) ([]models.Answer, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT aa.id, aa.application_id, aa.question_id, q.question_text, aa.answer_text, aa.created FROM application_answers aa JOIN job_questions q ON q.id = aa.question_id WHERE aa.application_id = ? ORDER BY q.display_order, q.id`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Answer
	for rows.Next() {
		var ans models.Answer
		if err := rows.Scan(&ans.ID, &ans.ApplicationID, &ans.QuestionID, &ans.QuestionText, &ans.Text, &ans.Created); err != nil {
			return nil, err
		}
		out = append(out, ans)
	}

	return out, rows.Err()
}

// UpdateStatus applies a status change guarded by the row version.
func (r *SQLiteRepo) UpdateStatus(ctx context.Context, id, expectedVersion int64, status models.Status, notes *string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE applications SET status = ?, hr_notes = COALESCE(?, hr_notes), version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		string(status), notes, now(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("application %d version %d: %w", id, expectedVersion, repository.ErrConflict)
	}

	return nil
}

func (r *SQLiteRepo) queryApplications(ctx context.Context, query string, args ...any) ([]models.Application, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

func scanApplication(s scanner) (*models.Application, error) {
	var a models.Application
	var status string
	var score sql.NullFloat64
	var summary, notes sql.NullString
	if err := s.Scan(&a.ID, &a.JobID, &a.CandidateID, &a.ResumeLocator, &status, &score, &summary, &notes, &a.Processed, &a.Version, &a.SubmittedAt, &a.UpdatedAt, &a.CandidateName, &a.CandidateEmail, &a.JobTitle); err != nil {
		return nil, err
	}
	a.Status = models.Status(status)
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	if summary.Valid {
		v := summary.String
		a.Summary = &v
	}
	if notes.Valid {
		v := notes.String
		a.HRNotes = &v
	}

	return &a, nil
}
