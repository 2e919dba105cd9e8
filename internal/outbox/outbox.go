// Package outbox runs post-commit work. Producers insert tasks with Enqueue on
// the same transaction as the state change that caused them, so a task exists
// only if that change committed. A WorkerPool claims and runs them.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/ats/internal/models"
	"github.com/garnizeh/ats/pkg/repository"
)

// Task types.
const (
	TypeEvaluate = "application.evaluate"
	TypeNotify   = "notify.send"
)

const defaultPriority = 100

// Handler is the function that processes a task. A returned error schedules a
// retry until the task's attempts run out.
type Handler func(ctx context.Context, t *models.Task) error

// ErrMaxAttempts indicates the task reached max attempts
var ErrMaxAttempts = errors.New("max attempts reached")

// Enqueue marshals payload into a task of type typ and writes it through repo.
// Pass a transaction-bound repo to tie the task to that transaction.
func Enqueue(ctx context.Context, repo repository.OutboxRepo, typ string, payload any, maxAttempts int) (int64, error) {
	t, err := models.NewTask(typ, payload, defaultPriority, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return repo.EnqueueTask(ctx, t)
}

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	const max = 5 * time.Minute
	if attempt > 16 {
		return max
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > max {
		return max
	}
	return d
}
