// Package recovery periodically re-drives applications that were never scored.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/ats/pkg/models"
)

// Source lists applications still waiting for a score.
type Source interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.Application, error)
}

// Loader fetches stored resume bytes.
type Loader interface {
	Load(ctx context.Context, locator string) ([]byte, error)
}

// TextExtractor turns resume bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Evaluator scores one application.
type Evaluator interface {
	Evaluate(ctx context.Context, appID int64, resumeText string) error
}

type Config struct {
	Interval        time.Duration
	Concurrency     int
	EvaluateTimeout time.Duration
}

// Stats summarises one sweep.
type Stats struct {
	Found  int
	OK     int
	Failed int
}

// Sweeper runs sweeps one at a time: immediately on Start, then Interval after
// each sweep finishes. Applications within a sweep run concurrently up to
// Concurrency.
type Sweeper struct {
	src       Source
	loader    Loader
	extractor TextExtractor
	eval      Evaluator
	cfg       Config
	logger    *slog.Logger

	runMu  sync.Mutex
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(src Source, loader Loader, extractor TextExtractor, eval Evaluator, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.EvaluateTimeout <= 0 {
		cfg.EvaluateTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{src: src, loader: loader, extractor: extractor, eval: eval, cfg: cfg, logger: logger}
}

// Start launches the sweep loop. It is a no-op if already running.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("recovery sweep failed", "err", err)
			}
			timer.Reset(s.cfg.Interval)
		}
	}
}

// RunOnce performs one sweep. Per-application failures are logged and counted;
// only a failure to list applications is returned.
func (s *Sweeper) RunOnce(ctx context.Context) (Stats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	apps, err := s.src.ListUnprocessed(ctx, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("list unprocessed applications: %w", err)
	}
	if len(apps) == 0 {
		s.logger.Debug("no pending evaluations")
		return Stats{}, nil
	}

	s.logger.Info("recovery sweep started", "found", len(apps))

	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range apps {
		app := apps[i]
		g.Go(func() error {
			if err := s.recover(gctx, &app); err != nil {
				failed.Add(1)
				s.logger.Error("recovery failed", "application_id", app.ID, "err", err)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	st := Stats{Found: len(apps), OK: int(ok.Load()), Failed: int(failed.Load())}
	s.logger.Info("recovery sweep finished", "found", st.Found, "ok", st.OK, "failed", st.Failed)
	return st, nil
}

func (s *Sweeper) recover(ctx context.Context, app *models.Application) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EvaluateTimeout)
	defer cancel()

	data, err := s.loader.Load(ctx, app.ResumeLocator)
	if err != nil {
		return fmt.Errorf("load resume %s: %w", app.ResumeLocator, err)
	}
	text, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("extract resume: %w", err)
	}
	return s.eval.Evaluate(ctx, app.ID, text)
}
