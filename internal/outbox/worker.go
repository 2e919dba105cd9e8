package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/ats/internal/models"
	"github.com/garnizeh/ats/pkg/repository"
)

type WorkerPool struct {
	repo         repository.OutboxRepo
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo repository.OutboxRepo, logger *slog.Logger, workerCount int, pollInterval time.Duration) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     make(map[string]Handler),
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		stop:         make(chan struct{}),
	}
}

// Register binds h to task type typ. Call before Start.
func (p *WorkerPool) Register(typ string, h Handler) {
	p.handlers[typ] = h
}

// Start requeues tasks left running by a previous process and launches the
// worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) error {
	n, err := p.repo.RequeueRunningTasks(ctx)
	if err != nil {
		return fmt.Errorf("requeue running tasks: %w", err)
	}
	if n > 0 {
		p.logger.Info("requeued interrupted tasks", "count", n)
	}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return nil
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Debug("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Debug("context canceled, worker exiting", "id", id)
			return
		default:
		}

		task, err := p.repo.ClaimNextTask(ctx)
		if err != nil {
			p.logger.Error("claim task", "err", err)
			p.idle(ctx, 2*p.pollInterval)
			continue
		}
		if task == nil {
			p.idle(ctx, p.pollInterval)
			continue
		}
		p.run(ctx, task)
	}
}

// idle waits for d or until the pool is stopped.
func (p *WorkerPool) idle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

func (p *WorkerPool) run(ctx context.Context, task *models.Task) {
	log := p.logger.With("task_id", task.ID, "type", task.Type)

	h, ok := p.handlers[task.Type]
	if !ok {
		task.Status = models.TaskFailed
		task.LastError = "no handler"
		if err := p.repo.MoveTaskToDeadLetter(ctx, task); err != nil {
			log.Error("move to dead letter", "err", err)
		}
		return
	}

	err := p.safeCall(ctx, h, task)
	if err == nil {
		task.Status = models.TaskDone
		task.NextTryAt = nil
		if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
			log.Error("mark task done", "err", upErr)
		}
		return
	}

	task.Attempts++
	task.LastError = err.Error()
	if task.Attempts >= task.MaxAttempts {
		task.Status = models.TaskFailed
		log.Warn("task exhausted retries", "attempts", task.Attempts, "err", fmt.Errorf("%w: %v", ErrMaxAttempts, err))
		if mvErr := p.repo.MoveTaskToDeadLetter(ctx, task); mvErr != nil {
			log.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	next := time.Now().Add(BackoffDuration(task.Attempts))
	task.NextTryAt = &next
	task.Status = models.TaskRetry
	log.Info("task scheduled for retry", "attempts", task.Attempts, "next_try_at", next, "err", err)
	if upErr := p.repo.UpdateTask(ctx, task); upErr != nil {
		log.Error("update task for retry", "err", upErr)
	}
}

// safeCall turns a handler panic into an error so one bad task cannot take a
// worker down.
func (p *WorkerPool) safeCall(ctx context.Context, h Handler, task *models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, task)
}
