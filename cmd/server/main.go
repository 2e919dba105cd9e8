package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/ats/api"
	"github.com/garnizeh/ats/internal/app"
	"github.com/garnizeh/ats/internal/config"
	"github.com/garnizeh/ats/internal/logger"
	"github.com/garnizeh/ats/internal/notify"
	"github.com/garnizeh/ats/internal/outbox"
	"github.com/garnizeh/ats/internal/recovery"
	"github.com/joho/godotenv"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log)
	slog.SetDefault(lg)
	api.SetLogger(lg)

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *slog.Logger) error {
	lg.Info("starting ATS server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("error closing components", slog.Any("err", err))
		}
	}()

	sender, closeSender, err := app.NewSender(cfg.Notify, lg)
	if err != nil {
		return err
	}
	defer closeSender()
	dispatcher := notify.NewDispatcher(sender, cfg.Notify.Timeout, lg)
	defer dispatcher.Close()

	pool := outbox.NewWorkerPool(c.Repo, lg, cfg.Outbox.Workers, cfg.Outbox.PollInterval)
	pool.Register(outbox.TypeEvaluate, c.Coordinator.HandleTask)
	pool.Register(outbox.TypeNotify, notify.TaskHandler(dispatcher))

	var sweeper *recovery.Sweeper
	if cfg.Recovery.Enabled {
		sweeper = c.Sweeper()
	}
	stopBackground, err := startBackground(pool, sweeper)
	if err != nil {
		return err
	}
	defer stopBackground()

	handler := api.SetupRoutes(cfg, version, buildTime, api.Deps{
		Users:     c.Repo,
		Schemas:   c.Repo,
		Templates: c.Repo,
		Hiring:    c.Hiring,
		Engine:    c.Engine,
		DB:        c.DB.GetConn(),
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	lg.Info("server exited")
	return nil
}

// startBackground runs the outbox pool and the optional sweeper on a context
// detached from requests. The returned stop cancels that context before
// waiting, so in-flight model calls return instead of running to their timeout.
func startBackground(pool *outbox.WorkerPool, sweeper *recovery.Sweeper) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		cancel()
		return nil, err
	}
	if sweeper != nil {
		sweeper.Start(ctx)
	}
	return func() {
		cancel()
		if sweeper != nil {
			sweeper.Stop()
		}
		pool.Stop()
	}, nil
}
