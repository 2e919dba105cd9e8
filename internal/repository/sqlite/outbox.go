package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/ats/internal/models"
)

// EnqueueTask inserts a task into outbox_tasks. Called on a transaction-bound
// repo the task becomes visible to workers only when that transaction commits.
func (r *SQLiteRepo) EnqueueTask(ctx context.Context, t *models.Task) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("task is nil")
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = 3
	}
	if t.ScheduledAt.IsZero() {
		t.ScheduledAt = time.Now()
	}
	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO outbox_tasks (type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Type, string(t.Payload), models.TaskQueued, t.Attempts, t.MaxAttempts, t.Priority, t.ScheduledAt.UTC().UnixMilli(), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id

	return id, nil
}

// ClaimNextTask picks the next due task by priority and schedule and marks it
// running. A task claimed by another worker in between is skipped.
func (r *SQLiteRepo) ClaimNextTask(ctx context.Context) (*models.Task, error) {
	for range 3 {
		ts := now()
		row := r.q.QueryRowContext(ctx, `SELECT id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated FROM outbox_tasks WHERE status IN ('queued', 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`, ts, ts)
		t, err := scanTask(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch next task: %w", err)
		}

		res, err := r.q.ExecContext(ctx, `UPDATE outbox_tasks SET status = ?, updated = ? WHERE id = ? AND status IN ('queued', 'retry')`, models.TaskRunning, ts, t.ID)
		if err != nil {
			return nil, fmt.Errorf("claim task %d: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			t.Status = models.TaskRunning
			return t, nil
		}
	}

	return nil, nil
}

// UpdateTask updates attempts, status, next_try_at and last_error.
func (r *SQLiteRepo) UpdateTask(ctx context.Context, t *models.Task) error {
	var nextTry any
	if t.NextTryAt != nil {
		nextTry = t.NextTryAt.UTC().UnixMilli()
	}
	_, err := r.q.ExecContext(ctx, `UPDATE outbox_tasks SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`, t.Status, t.Attempts, nextTry, t.LastError, now(), t.ID)
	return err
}

// MoveTaskToDeadLetter moves a task to dead_letter_tasks and deletes the original.
func (r *SQLiteRepo) MoveTaskToDeadLetter(ctx context.Context, t *models.Task) error {
	return r.atomic(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `INSERT INTO dead_letter_tasks (task_id, type, payload, attempts, last_error, failed_at) VALUES (?, ?, ?, ?, ?, ?)`, t.ID, t.Type, string(t.Payload), t.Attempts, t.LastError, now()); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `DELETE FROM outbox_tasks WHERE id = ?`, t.ID)
		return err
	})
}

// RequeueRunningTasks returns tasks left running by a previous process to the retry state.
func (r *SQLiteRepo) RequeueRunningTasks(ctx context.Context) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE outbox_tasks SET status = ?, updated = ? WHERE status = ?`, models.TaskRetry, now(), models.TaskRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanTask(row *sql.Row) (*models.Task, error) {
	var (
		t           models.Task
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&t.ID, &t.Type, &payload, &t.Status, &t.Attempts, &t.MaxAttempts, &t.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		return nil, err
	}
	t.ScheduledAt = time.UnixMilli(scheduledAt)
	t.Created = time.UnixMilli(created)
	t.Updated = time.UnixMilli(updated)
	if payload.Valid {
		t.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		v := time.UnixMilli(nextTry.Int64)
		t.NextTryAt = &v
	}
	t.LastError = lastError.String

	return &t, nil
}
