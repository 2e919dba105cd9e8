// Package ollama is the local-model scoring backend. Client implements the
// scoring engine's Generator on top of the Ollama API with retries, a
// per-request timeout and a simple circuit breaker.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/ats/internal/config"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client and adds retries, timeout, and circuit breaker.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	model  string
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32
}

// NewClient creates a client that generates with model.
func NewClient(cfg config.OllamaConfig, model string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if model == "" {
		return nil, errors.New("model name is required")
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		model:  model,
		client: httpClient,
	}
	logger.Info("ollama: client created", slog.String("base_url", cfg.BaseURL), slog.String("model", model), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg config.OllamaConfig, model string) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, model, defaultClient)
}

// Model returns the model name this client generates with.
func (c *Client) Model() string { return c.model }

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

// Close closes idle connections on the underlying transport. It is
// idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if c.cfg.CircuitFailureThreshold > 0 && v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// ModelInfo is a lightweight model descriptor returned by ListModels.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListModels returns the models installed on the Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	resp, err := c.api.List(ctx)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("list models: %w", err)
	}

	out := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
	}
	atomic.StoreInt32(&c.failures, 0)
	return out, nil
}

// Health checks that the instance answers and has the configured model.
func (c *Client) Health(ctx context.Context) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	for _, m := range models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return nil
		}
	}
	return fmt.Errorf("health check failed: model %q not installed", c.model)
}

// Complete sends prompt to the model in JSON mode and returns the full
// response text. Transient failures are retried with linear backoff until the
// retry budget or ctx runs out.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.isCircuitOpen() {
		return "", ErrCircuitOpen
	}

	stream := false
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		req := &api.GenerateRequest{
			Model:  c.model,
			Prompt: prompt,
			Format: json.RawMessage(`"json"`),
			Stream: &stream,
		}

		var out strings.Builder
		start := time.Now()
		err := c.api.Generate(ctxReq, req, func(r api.GenerateResponse) error {
			out.WriteString(r.Response)
			return nil
		})
		cancel()

		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			logger.Debug("ollama: generate ok", slog.String("model", c.model), slog.Int64("latency_ms", time.Since(start).Milliseconds()))
			return out.String(), nil
		}

		lastErr = err
		c.recordFailure()
		logger.Warn("ollama: generate failed", slog.String("model", c.model), slog.Int("attempt", attempt+1), slog.Any("err", err))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == c.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.Backoff * time.Duration(attempt+1)):
		}
		if c.isCircuitOpen() {
			return "", ErrCircuitOpen
		}
	}

	return "", fmt.Errorf("generate failed after retries: %w", lastErr)
}
