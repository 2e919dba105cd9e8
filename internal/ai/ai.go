package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	dbfs "github.com/garnizeh/ats/db"
	"github.com/garnizeh/ats/internal/config"
	"github.com/garnizeh/ats/pkg/repository"
)

// ErrScoringResponseMalformed marks a model response that could not be read as
// a scoring object at all. Absent fields are not malformed; they default.
var ErrScoringResponseMalformed = errors.New("scoring response malformed")

// Generator sends a prompt to a language model and returns its raw text.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// QA is one screening question with the candidate's answer.
type QA struct {
	Question string
	Answer   string
}

// ScoringInput is everything the prompt embeds.
type ScoringInput struct {
	JobTitle       string
	JobDescription string
	Answers        []QA
	ResumeText     string
}

// Result is a parsed scoring response with every field defaulted.
type Result struct {
	Score           float64 `json:"score"`
	Summary         string  `json:"summary"`
	Strengths       string  `json:"strengths"`
	Weaknesses      string  `json:"weaknesses"`
	ImprovementTips string  `json:"improvementTips"`
	Confidence      float64 `json:"confidenceScore"`

	// Raw captures the original model output for auditing/logging.
	Raw string `json:"-"`
}

// Engine renders the scoring prompt, calls the Generator and parses the reply.
type Engine struct {
	gen       Generator
	cfg       config.EngineConfig
	loader    *Loader
	templates repository.TemplateRepo
	logger    *slog.Logger

	mu        sync.RWMutex
	tpl       string
	schemaVer string
}

// NewEngine loads the configured prompt template and the schema cache. When the
// template is missing from the database the embedded default is used.
func NewEngine(ctx context.Context, gen Generator, cfg config.EngineConfig, sr repository.SchemaRepo, tr repository.TemplateRepo, logger *slog.Logger) (*Engine, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if sr == nil {
		return nil, fmt.Errorf("schema repo is required")
	}
	if tr == nil {
		return nil, fmt.Errorf("template repo is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Template.Name == "" {
		cfg.Template.Name = "scoring"
	}
	if cfg.Template.Version == "" {
		cfg.Template.Version = "v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	loader, err := NewLoader(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}

	e := &Engine{gen: gen, cfg: cfg, loader: loader, templates: tr, logger: logger}
	if err := e.loadTemplate(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// loadTemplate reads the configured template and swaps it in. A template that
// does not parse leaves the current one in place.
func (e *Engine) loadTemplate(ctx context.Context) error {
	name, version := e.cfg.Template.Name, e.cfg.Template.Version
	row, err := e.templates.GetTemplate(ctx, name, version)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	var tpl, schemaVer string
	if row != nil && row.TemplateTxt != "" {
		tpl = row.TemplateTxt
		if row.SchemaVer != nil {
			schemaVer = *row.SchemaVer
		}
	} else {
		e.logger.Warn("scoring template not found, using built-in default", "name", name, "version", version)
		if tpl, err = DefaultScoringTemplate(); err != nil {
			return err
		}
		schemaVer = "v1"
	}
	if _, err := template.New("prompt").Parse(tpl); err != nil {
		return fmt.Errorf("parse template %s:%s: %w", name, version, err)
	}

	e.mu.Lock()
	e.tpl, e.schemaVer = tpl, schemaVer
	e.mu.Unlock()
	return nil
}

// DefaultScoringTemplate returns the prompt template shipped with the seed data.
func DefaultScoringTemplate() (string, error) {
	b, err := fs.ReadFile(dbfs.SeedFiles, "seed/template_scoring_v1.txt")
	if err != nil {
		return "", fmt.Errorf("read default template: %w", err)
	}
	return string(b), nil
}

// Model names the backing model, recorded with every evaluation.
func (e *Engine) Model() string { return e.gen.Model() }

// Reload re-reads the schema cache and the configured prompt template so
// admin changes apply without a restart.
func (e *Engine) Reload(ctx context.Context) error {
	if err := e.loader.Reload(ctx); err != nil {
		return err
	}
	return e.loadTemplate(ctx)
}

func (e *Engine) current() (tpl, schemaVer string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tpl, e.schemaVer
}

// Score builds the prompt for in, calls the model under the engine timeout and
// parses the reply. It never touches persisted state. Schema violations are
// logged; only a reply with no decodable object fails.
func (e *Engine) Score(ctx context.Context, in ScoringInput) (*Result, error) {
	tpl, schemaVer := e.current()
	prompt, err := BuildPrompt(tpl, in)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.gen.Complete(ctxReq, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	res, err := ParseScoringResponse(out)
	if err != nil {
		e.logger.Warn("scoring response parse failed", "err", err, "raw", out)
		return nil, err
	}

	if violations := e.validate(ctxReq, schemaVer, out); len(violations) > 0 {
		e.logger.Warn("scoring response does not match schema, using defaults",
			"schema_version", schemaVer, "violations", strings.Join(violations, "; "))
	}

	return res, nil
}

// validate checks the JSON object in raw against schema version ver and
// returns the violation messages. Without a schema version nothing is checked.
func (e *Engine) validate(ctx context.Context, ver, raw string) []string {
	if ver == "" {
		return nil
	}
	schema, ok := e.loader.GetSchema(ver)
	if !ok || schema == nil {
		return []string{"no schema found for version " + ver}
	}

	verrs, err := schema.ValidateBytes(ctx, []byte(extractJSON(raw)))
	if err != nil {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, v := range verrs {
		out = append(out, v.PropertyPath+": "+v.Message)
	}
	return out
}

// BuildPrompt renders tmpl with in.
func BuildPrompt(tmpl string, in ScoringInput) (string, error) {
	tpl, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, in); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// wireResult mirrors the response object; each field tolerates the loose
// shapes models produce.
type wireResult struct {
	Score           flexNumber `json:"score"`
	Summary         flexText   `json:"summary"`
	Strengths       flexText   `json:"strengths"`
	Weaknesses      flexText   `json:"weaknesses"`
	ImprovementTips flexText   `json:"improvementTips"`
	Confidence      flexNumber `json:"confidenceScore"`
}

// ParseScoringResponse extracts the JSON object from arbitrary model output.
// Missing fields default to zero values; scores are clamped to 0..100 and
// rounded to two decimals. Output with no decodable object is malformed.
func ParseScoringResponse(s string) (*Result, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty response: %w", ErrScoringResponseMalformed)
	}

	j := extractJSON(s)
	if j == "" {
		return nil, fmt.Errorf("no JSON object found in response: %w", ErrScoringResponseMalformed)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(j), &w); err != nil {
		return nil, fmt.Errorf("json unmarshal: %v: %w", err, ErrScoringResponseMalformed)
	}

	return &Result{
		Score:           clampScore(float64(w.Score)),
		Summary:         string(w.Summary),
		Strengths:       string(w.Strengths),
		Weaknesses:      string(w.Weaknesses),
		ImprovementTips: string(w.ImprovementTips),
		Confidence:      clampScore(float64(w.Confidence)),
		Raw:             s,
	}, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
// This is a pragmatic approach to handle model outputs that wrap JSON in text or markdown.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*100) / 100
}

// flexNumber accepts a JSON number or a numeric string. Anything else is zero.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*n = flexNumber(f)
			return nil
		}
	}
	*n = 0
	return nil
}

// flexText accepts a string or a list of strings, joined with ", ". Scalars
// keep their literal text; objects read as empty.
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexText(strings.TrimSpace(s))
		return nil
	}
	var list []any
	if err := json.Unmarshal(b, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			if p := strings.TrimSpace(fmt.Sprint(v)); p != "" {
				parts = append(parts, p)
			}
		}
		*t = flexText(strings.Join(parts, ", "))
		return nil
	}
	if raw := strings.TrimSpace(string(b)); raw != "null" && !strings.HasPrefix(raw, "{") {
		*t = flexText(raw)
		return nil
	}
	*t = ""
	return nil
}
