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

const jobColumns = `id, hr_id, title, description, location, status, is_active, application_deadline, created, updated`

// CreateJob inserts a job and its questions in one transaction.
func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}
	if j.Status == "" {
		j.Status = models.JobOpen
	}

	var id int64
	err := r.atomic(ctx, func(q querier) error {
		ts := now()
		res, err := q.ExecContext(ctx, `INSERT INTO jobs (hr_id, title, description, location, status, is_active, application_deadline, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.HRID, j.Title, j.Description, j.Location, string(j.Status), j.Active, j.Deadline, ts, ts)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		for i := range j.Questions {
			qs := &j.Questions[i]
			qs.JobID = id
			res, err := q.ExecContext(ctx, `INSERT INTO job_questions (job_id, question_text, is_mandatory, max_length, display_order, created) VALUES (?, ?, ?, ?, ?, ?)`,
				id, qs.Text, qs.Mandatory, qs.MaxLength, qs.DisplayOrder, ts)
			if err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
			if qs.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	j.ID = id

	return id, nil
}

// GetJob returns the job with its questions in display order, or nil if missing.
func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	j, err := scanJob(r.q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil || j == nil {
		return j, err
	}

	rows, err := r.q.QueryContext(ctx, `SELECT id, job_id, question_text, is_mandatory, max_length, display_order FROM job_questions WHERE job_id = ? ORDER BY display_order, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var qs models.Question
		var maxLen sql.NullInt64
		if err := rows.Scan(&qs.ID, &qs.JobID, &qs.Text, &qs.Mandatory, &maxLen, &qs.DisplayOrder); err != nil {
			return nil, err
		}
		if maxLen.Valid {
			v := int(maxLen.Int64)
			qs.MaxLength = &v
		}
		j.Questions = append(j.Questions, qs)
	}

	return j, rows.Err()
}

func (r *SQLiteRepo) ListJobsByHR(ctx context.Context, hrID int64) ([]models.Job, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE hr_id = ? ORDER BY created DESC`, hrID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) ListOpenJobs(ctx context.Context, f repository.JobFilter) ([]models.Job, int, error) {
	where := []string{"status = ?", "is_active = 1", "(application_deadline IS NULL OR application_deadline >= ?)"}
	args := []any{string(models.JobOpen), f.Now}

	if s := strings.TrimSpace(f.Title); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, like, like)
	}
	if s := strings.TrimSpace(f.Location); s != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	if f.PostedSince > 0 {
		where = append(where, "created >= ?")
		args = append(args, f.PostedSince)
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count open jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + cond + ` ORDER BY created DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *j)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepo) UpdateJobStatus(ctx context.Context, id int64, status models.JobStatus, active bool) error {
	_, err := r.q.ExecContext(ctx, `UPDATE jobs SET status = ?, is_active = ?, updated = ? WHERE id = ?`, string(status), active, now(), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.Job, error) {
	var j models.Job
	var status string
	var location sql.NullString
	var deadline sql.NullInt64
	if err := s.Scan(&j.ID, &j.HRID, &j.Title, &j.Description, &location, &status, &j.Active, &deadline, &j.Created, &j.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.Location = location.String
	if deadline.Valid {
		v := deadline.Int64
		j.Deadline = &v
	}

	return &j, nil
}
