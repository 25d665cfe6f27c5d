package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Ledger backend
	LedgerAPIURL    string `envconfig:"LEDGER_API_URL" default:"http://localhost:8000/api"`
	LedgerHealthURL string `envconfig:"LEDGER_HEALTH_URL" default:"http://localhost:8000/health"`
	LedgerAPIToken  string `envconfig:"LEDGER_API_TOKEN"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Language model (OpenAI-compatible, e.g. LM Studio)
	LLMBaseURL     string        `envconfig:"LLM_BASE_URL" default:"http://127.0.0.1:1234"`
	LLMModel       string        `envconfig:"LLM_MODEL" default:"local-model"`
	LLMAPIKey      string        `envconfig:"LLM_API_KEY"`
	LLMTemperature float32       `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"5m"`
	LLMMaxRetries  int           `envconfig:"LLM_MAX_RETRIES" default:"1"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"4"`

	// Cache
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	CacheBackend string        `envconfig:"CACHE_BACKEND" default:"memory"`

	// Conversation history
	RedisURL           string        `envconfig:"REDIS_URL"`
	HistoryTTL         time.Duration `envconfig:"HISTORY_TTL" default:"24h"`
	HistoryMaxMessages int           `envconfig:"HISTORY_MAX_MESSAGES" default:"50"`

	// Pipeline
	OptimizeContext     bool `envconfig:"OPTIMIZE_CONTEXT" default:"false"`
	CollectConcurrently bool `envconfig:"COLLECT_CONCURRENTLY" default:"false"`
	MaxContextRunes     int  `envconfig:"MAX_CONTEXT_RUNES" default:"12000"`

	// Jobs
	CatalogRefreshSchedule string `envconfig:"CATALOG_REFRESH_SCHEDULE" default:"@every 10m"`
	Timezone               string `envconfig:"TIMEZONE" default:"Asia/Seoul"`

	// Observability
	OTLPEndpoint       string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	InteractionLogPath string `envconfig:"INTERACTION_LOG_PATH"`
}

// Load reads .env (when present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load(dotenvPaths ...string) (*Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validate() error {
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	switch c.CacheBackend {
	case "memory", "ristretto":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or ristretto, got %q", c.CacheBackend)
	}
	if c.LedgerAPIURL == "" {
		return errors.New("LEDGER_API_URL is required")
	}
	if c.LLMBaseURL == "" {
		return errors.New("LLM_BASE_URL is required")
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	return nil
}
