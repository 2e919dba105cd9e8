package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr           string         `yaml:"addr"`
	JWTSecret      string         `yaml:"jwt_secret"`
	APITimeout     time.Duration  `yaml:"timeout"`
	DatabasePath   string         `yaml:"database_path"`
	TokenDuration  time.Duration  `yaml:"token_duration"`
	MigrateOnStart bool           `yaml:"migrate_on_start"`
	Log            LogConfig      `yaml:"log"`
	EngineConfig   EngineConfig   `yaml:"engine"`
	Ollama         OllamaConfig   `yaml:"ollama"`
	Gemini         GeminiConfig   `yaml:"gemini"`
	Vertex         VertexConfig   `yaml:"vertex"`
	Recovery       RecoveryConfig `yaml:"recovery"`
	Outbox         OutboxConfig   `yaml:"outbox"`
	Storage        StorageConfig  `yaml:"storage"`
	Extract        ExtractConfig  `yaml:"extract"`
	Notify         NotifyConfig   `yaml:"notify"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type EngineConfig struct {
	Provider string         `yaml:"provider"`
	Model    string         `yaml:"model"`
	Template PromptTemplate `yaml:"template"`
	Timeout  time.Duration  `yaml:"timeout"`
}

type PromptTemplate struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type VertexConfig struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	Model    string `yaml:"model"`
}

// RecoveryConfig controls the periodic sweep over unscored applications.
type RecoveryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	Concurrency     int           `yaml:"concurrency"`
	EvaluateTimeout time.Duration `yaml:"evaluate_timeout"`
}

type OutboxConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type StorageConfig struct {
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type ExtractConfig struct {
	UnidocLicenseKey string `yaml:"unidoc_license_key"`
	MaxBytes         int64  `yaml:"max_bytes"`
}

type NotifyConfig struct {
	Driver  string        `yaml:"driver"`
	AMQPURL string        `yaml:"amqp_url"`
	Queue   string        `yaml:"queue"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoadConfig builds a Config from ATS_* environment defaults, overlays the
// YAML file at path when given, then validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:           getEnv("ATS_ADDR", ":8080"),
		JWTSecret:      getEnv("ATS_JWT_SECRET", insecureJWTSecret),
		APITimeout:     15 * time.Second,
		DatabasePath:   getEnv("ATS_DATABASE_PATH", "ats.db"),
		TokenDuration:  time.Hour,
		MigrateOnStart: getEnv("ATS_MIGRATE_ON_START", "true") == "true",
		Log: LogConfig{
			Format: getEnv("ATS_LOG_FORMAT", "text"),
			Level:  getEnv("ATS_LOG_LEVEL", "info"),
		},
		EngineConfig: EngineConfig{
			Provider: getEnv("ATS_ENGINE_PROVIDER", "ollama"),
			Model:    getEnv("ATS_ENGINE_MODEL", "llama3"),
		},
		Ollama: OllamaConfig{BaseURL: getEnv("ATS_OLLAMA_URL", "http://localhost:11434")},
		Gemini: GeminiConfig{APIKey: os.Getenv("ATS_GEMINI_API_KEY")},
		Vertex: VertexConfig{
			Project:  os.Getenv("ATS_VERTEX_PROJECT"),
			Location: getEnv("ATS_VERTEX_LOCATION", "us-central1"),
		},
		Recovery: RecoveryConfig{Enabled: true},
		Storage:  StorageConfig{Dir: getEnv("ATS_STORAGE_DIR", "uploads")},
		Extract:  ExtractConfig{UnidocLicenseKey: os.Getenv("ATS_UNIDOC_LICENSE_KEY")},
		Notify: NotifyConfig{
			Driver:  getEnv("ATS_NOTIFY_DRIVER", "log"),
			AMQPURL: os.Getenv("ATS_AMQP_URL"),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fills zero-valued settings with defaults and rejects unusable ones.
// The built-in JWT secret is only accepted when ATS_ENV=development.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == insecureJWTSecret && os.Getenv("ATS_ENV") != "development" {
		errs = append(errs, errors.New("jwt_secret uses the built-in default; set ATS_JWT_SECRET or ATS_ENV=development"))
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}

	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	e := &c.EngineConfig
	if e.Provider == "" {
		e.Provider = "ollama"
	}
	switch e.Provider {
	case "ollama":
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required for provider gemini"))
		}
	case "vertex":
		if c.Vertex.Project == "" || c.Vertex.Location == "" {
			errs = append(errs, errors.New("vertex.project and vertex.location are required for provider vertex"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.provider %q must be ollama, gemini or vertex", e.Provider))
	}
	if e.Model == "" {
		errs = append(errs, errors.New("engine.model is required"))
	}
	if e.Timeout <= 0 {
		e.Timeout = 2 * time.Minute
	}
	if e.Template.Name == "" {
		e.Template.Name = "scoring"
	}
	if e.Template.Version == "" {
		e.Template.Version = "v1"
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = e.Timeout
	}
	if c.Ollama.Retries <= 0 {
		c.Ollama.Retries = 2
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = 500 * time.Millisecond
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = 5
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = 30 * time.Second
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = e.Model
	}
	if c.Vertex.Model == "" {
		c.Vertex.Model = e.Model
	}

	r := &c.Recovery
	if r.Interval <= 0 {
		r.Interval = 5 * time.Minute
	}
	if r.Concurrency <= 0 {
		r.Concurrency = 4
	}
	if r.EvaluateTimeout <= 0 {
		r.EvaluateTimeout = 2 * time.Minute
	}

	o := &c.Outbox
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = "uploads"
	}
	if c.Extract.MaxBytes <= 0 {
		c.Extract.MaxBytes = 10 << 20
	}

	n := &c.Notify
	if n.Driver == "" {
		n.Driver = "log"
	}
	switch n.Driver {
	case "log":
	case "amqp":
		if n.AMQPURL == "" {
			errs = append(errs, errors.New("notify.amqp_url is required for driver amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.driver %q must be log or amqp", n.Driver))
	}
	if n.Queue == "" {
		n.Queue = "ats.notifications"
	}
	if n.Timeout <= 0 {
		n.Timeout = 10 * time.Second
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
