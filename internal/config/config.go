// Package config loads the service's YAML configuration file, following the
// teacher's internal/config.Load pipeline: read, expand environment
// variables, strict-decode into a typed struct, apply REFINEQUERY_* env
// overrides, fill defaults, validate.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full set of options from the configuration section:
// analyzer endpoint/credentials, the persistence backend, orchestration
// tunables, and the HTTP listen address.
type Config struct {
	AnalyzerEndpoint    string        `yaml:"analyzer_endpoint"`
	AnalyzerAPIKey      string        `yaml:"analyzer_api_key"`
	AnalyzerModel       string        `yaml:"analyzer_model"`
	StoreURI            string        `yaml:"store_uri"`
	HistoryContextLimit int           `yaml:"history_context_limit"`
	AnalyzerTimeoutMS   int           `yaml:"analyzer_timeout_ms"`
	RequestTimeoutMS    int           `yaml:"request_timeout_ms"`
	RetryMaxAttempts    int           `yaml:"retry_max_attempts"`
	RetryBaseDelayMS    int           `yaml:"retry_base_delay_ms"`
	DuplicateWindow     int           `yaml:"duplicate_window"`
	ListenAddress       string        `yaml:"listen_address"`
	StatsLogInterval    time.Duration `yaml:"stats_log_interval"`
}

// Load reads path (a YAML file), bootstraps process environment from a
// .env file in the working directory if present, expands ${VAR} references, applies
// REFINEQUERY_* overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	// Best-effort .env bootstrap: a missing .env is normal outside local
	// development, so godotenv's error is only fatal if the file exists but
	// is malformed.
	if _, statErr := os.Stat(".env"); statErr == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AnalyzerModel == "" {
		cfg.AnalyzerModel = "claude-sonnet-4-20250514"
	}
	if cfg.StoreURI == "" {
		cfg.StoreURI = "memory://"
	}
	if cfg.HistoryContextLimit == 0 {
		cfg.HistoryContextLimit = 10
	}
	if cfg.AnalyzerTimeoutMS == 0 {
		cfg.AnalyzerTimeoutMS = 45_000
	}
	if cfg.RequestTimeoutMS == 0 {
		cfg.RequestTimeoutMS = 180_000
	}
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = 3
	}
	if cfg.RetryBaseDelayMS == 0 {
		cfg.RetryBaseDelayMS = 250
	}
	if cfg.DuplicateWindow == 0 {
		cfg.DuplicateWindow = 5
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "0.0.0.0:2024"
	}
	if cfg.StatsLogInterval == 0 {
		cfg.StatsLogInterval = 10 * time.Minute
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_ANALYZER_ENDPOINT")); v != "" {
		cfg.AnalyzerEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_ANALYZER_API_KEY")); v != "" {
		cfg.AnalyzerAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_ANALYZER_MODEL")); v != "" {
		cfg.AnalyzerModel = v
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_STORE_URI")); v != "" {
		cfg.StoreURI = v
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_LISTEN_ADDRESS")); v != "" {
		cfg.ListenAddress = v
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_HISTORY_CONTEXT_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryContextLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_ANALYZER_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AnalyzerTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_REQUEST_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_RETRY_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_RETRY_BASE_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryBaseDelayMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REFINEQUERY_DUPLICATE_WINDOW")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DuplicateWindow = n
		}
	}
}

// ValidationError reports every problem found, rather than failing fast on
// the first one, matching the teacher's ConfigValidationError shape.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid configuration: %s", strings.Join(e.Issues, "; "))
}

func validate(cfg *Config) error {
	var issues []string
	if cfg.StoreURI == "" {
		issues = append(issues, "store_uri must not be empty")
	}
	if cfg.HistoryContextLimit <= 0 {
		issues = append(issues, "history_context_limit must be positive")
	}
	if cfg.AnalyzerTimeoutMS <= 0 {
		issues = append(issues, "analyzer_timeout_ms must be positive")
	}
	if cfg.RequestTimeoutMS <= 0 {
		issues = append(issues, "request_timeout_ms must be positive")
	}
	if cfg.RetryMaxAttempts <= 0 {
		issues = append(issues, "retry_max_attempts must be positive")
	}
	if cfg.ListenAddress == "" {
		issues = append(issues, "listen_address must not be empty")
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
