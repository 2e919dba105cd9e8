// Package app assembles the long-lived components shared by the server and
// the admin CLI from a validated config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	dbfs "github.com/garnizeh/ats/db"
	"github.com/garnizeh/ats/internal/ai"
	"github.com/garnizeh/ats/internal/config"
	"github.com/garnizeh/ats/internal/db"
	"github.com/garnizeh/ats/internal/extract"
	"github.com/garnizeh/ats/internal/hiring"
	applog "github.com/garnizeh/ats/internal/logger"
	"github.com/garnizeh/ats/internal/notify"
	"github.com/garnizeh/ats/internal/pipeline"
	"github.com/garnizeh/ats/internal/recovery"
	"github.com/garnizeh/ats/internal/repository/sqlite"
	"github.com/garnizeh/ats/internal/storage"
	"github.com/garnizeh/ats/pkg/gemini"
	"github.com/garnizeh/ats/pkg/ollama"
	"github.com/garnizeh/ats/pkg/vertex"
)

type Components struct {
	DB          *db.DB
	Repo        *sqlite.SQLiteRepo
	Files       *storage.FS
	Extractor   *extract.Extractor
	Engine      *ai.Engine
	Coordinator *pipeline.Coordinator
	Hiring      *hiring.Service

	cfg     *config.Config
	logger  *slog.Logger
	closers []func() error
}

// Open connects the database, migrating it when cfg.MigrateOnStart is set,
// and builds the scoring engine on the configured model provider.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{cfg: cfg, logger: logger}

	d, err := OpenDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.DB = d
	c.closers = append(c.closers, d.Close)

	if err := c.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// OpenDB opens the configured database and applies migrations when
// cfg.MigrateOnStart is set.
func OpenDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	d, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return d, nil
}

func (c *Components) build(ctx context.Context) error {
	cfg := c.cfg
	c.Repo = sqlite.New(c.DB, c.logger)

	files, err := storage.NewFS(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("resume storage: %w", err)
	}
	c.Files = files

	if c.Extractor, err = extract.New(cfg.Extract.UnidocLicenseKey, cfg.Extract.MaxBytes, c.logger); err != nil {
		return err
	}

	gen, closeGen, err := NewGenerator(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, closeGen)

	if c.Engine, err = ai.NewEngine(ctx, gen, cfg.EngineConfig, c.Repo, c.Repo, c.logger); err != nil {
		return fmt.Errorf("scoring engine: %w", err)
	}
	c.Coordinator = pipeline.NewCoordinator(c.Repo, c.Engine, c.logger)
	c.Hiring = hiring.New(c.Repo, c.Files, c.Extractor, hiring.Options{
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
		Logger:        c.logger,
	})
	return nil
}

// Sweeper returns a recovery sweeper over the unscored applications.
func (c *Components) Sweeper() *recovery.Sweeper {
	r := c.cfg.Recovery
	return recovery.New(c.Repo, c.Files, c.Extractor, c.Coordinator, recovery.Config{
		Interval:        r.Interval,
		Concurrency:     r.Concurrency,
		EvaluateTimeout: r.EvaluateTimeout,
	}, c.logger)
}

// Close releases everything Open acquired, newest first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// NewGenerator builds the model backend named by engine.provider. The returned
// func releases it.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Generator, func() error, error) {
	switch cfg.EngineConfig.Provider {
	case "ollama":
		ollama.SetLogger(logger)
		c, err := ollama.NewDefaultClient(cfg.Ollama, cfg.EngineConfig.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("ollama client: %w", err)
		}
		return c, c.Close, nil
	case "gemini":
		zl := applog.NewZap(cfg.Log)
		g, err := gemini.NewGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		return g, func() error { _ = zl.Sync(); return nil }, nil
	case "vertex":
		zl := applog.NewZap(cfg.Log)
		g, err := vertex.NewGenerator(ctx, cfg.Vertex.Project, cfg.Vertex.Location, cfg.Vertex.Model, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("vertex client: %w", err)
		}
		return g, func() error { err := g.Close(); _ = zl.Sync(); return err }, nil
	}
	return nil, nil, fmt.Errorf("unknown engine provider %q", cfg.EngineConfig.Provider)
}

// NewSender builds the notice sender named by notify.driver.
func NewSender(cfg config.NotifyConfig, logger *slog.Logger) (notify.Sender, func() error, error) {
	switch cfg.Driver {
	case "", "log":
		return notify.NewLogSender(logger), func() error { return nil }, nil
	case "amqp":
		s, err := notify.NewAMQPSender(cfg.AMQPURL, cfg.Queue)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
}
