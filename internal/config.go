package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL      = "http://127.0.0.1:8082"
	DefaultTimeout         = 30 * time.Second
	DefaultAnalysisTimeout = 15 * time.Minute
	DefaultKeyPrefix       = "insight-dash:"
)

// Config holds the client settings. Flags override env, env overrides the YAML file.
type Config struct {
	BackendURL      string        `yaml:"backend_url"`
	Timeout         time.Duration `yaml:"timeout"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	StorePath       string        `yaml:"store_path"`
	RedisURL        string        `yaml:"redis_url,omitempty"`
	KeyPrefix       string        `yaml:"key_prefix"`
	RateLimit       float64       `yaml:"rate_limit,omitempty"` // requests per second, 0 disables
	TTSCommand      string        `yaml:"tts_command,omitempty"`
	STTCommand      string        `yaml:"stt_command,omitempty"`
}

// ConfigDir returns ~/.insight-dash
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".insight-dash"), nil
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cfg := &Config{
		BackendURL:      DefaultBackendURL,
		Timeout:         DefaultTimeout,
		AnalysisTimeout: DefaultAnalysisTimeout,
		KeyPrefix:       DefaultKeyPrefix,
	}
	if dir, err := ConfigDir(); err == nil {
		cfg.StorePath = filepath.Join(dir, "session.db")
	}
	return cfg
}

// LoadConfig reads the YAML file at path (or the default location when path is
// empty), then applies .env and INSIGHT_* environment variables.
func LoadConfig(path string) (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()
	return loadConfig(path, os.Getenv)
}

func loadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		if dir, err := ConfigDir(); err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			LogDebug("Loaded config from %s", path)
		case explicit || !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("INSIGHT_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := getenv("INSIGHT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid INSIGHT_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = d
	}
	if v := getenv("INSIGHT_ANALYSIS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid INSIGHT_ANALYSIS_TIMEOUT %q: %w", v, err)
		}
		cfg.AnalysisTimeout = d
	}
	if v := getenv("INSIGHT_STORE"); v != "" {
		cfg.StorePath = v
	}
	if v := getenv("INSIGHT_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("INSIGHT_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := getenv("INSIGHT_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid INSIGHT_RATE_LIMIT %q: %w", v, err)
		}
		cfg.RateLimit = r
	}
	if v := getenv("INSIGHT_TTS_COMMAND"); v != "" {
		cfg.TTSCommand = v
	}
	if v := getenv("INSIGHT_STT_COMMAND"); v != "" {
		cfg.STTCommand = v
	}
	return nil
}

// Validate checks the values that would otherwise fail late
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return &ValidationError{Field: "backend_url", Msg: "is required"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Msg: "must be positive"}
	}
	if c.AnalysisTimeout <= 0 {
		return &ValidationError{Field: "analysis_timeout", Msg: "must be positive"}
	}
	if c.RateLimit < 0 {
		return &ValidationError{Field: "rate_limit", Msg: "must not be negative"}
	}
	if c.StorePath == "" && c.RedisURL == "" {
		return &ValidationError{Field: "store_path", Msg: "is required when redis_url is not set"}
	}
	return nil
}
