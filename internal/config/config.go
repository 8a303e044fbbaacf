package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all tool configuration. Precedence, lowest to highest:
// built-in defaults, config file, environment, then command-line flags
// applied by each tool's main.
type Config struct {
	Download DownloadConfig `yaml:"download" toml:"download"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Logging  LogConfig      `yaml:"logging" toml:"logging"`
}

// DownloadConfig holds mirror pipeline configuration.
type DownloadConfig struct {
	BaseURL     string        `envconfig:"HIBP_BASE_URL" yaml:"base_url" toml:"base_url"`
	UserAgent   string        `envconfig:"HIBP_USER_AGENT" yaml:"user_agent" toml:"user_agent"`
	Parallel    int           `envconfig:"HIBP_PARALLEL" yaml:"parallel" toml:"parallel"`
	WaitTimeout time.Duration `envconfig:"HIBP_WAIT_TIMEOUT" yaml:"wait_timeout" toml:"wait_timeout"`
	Retries     int           `envconfig:"HIBP_RETRIES" yaml:"retries" toml:"retries"`
	RatePerSec  float64       `envconfig:"HIBP_RATE_PER_SEC" yaml:"rate_per_sec" toml:"rate_per_sec"`
}

// ServerConfig holds query server configuration. RatePerSec zero
// leaves per-client rate limiting off.
type ServerConfig struct {
	Host       string `envconfig:"HIBP_HOST" yaml:"host" toml:"host"`
	Port       string `envconfig:"HIBP_PORT" yaml:"port" toml:"port"`
	CacheSize  int    `envconfig:"HIBP_CACHE_SIZE" yaml:"cache_size" toml:"cache_size"`
	CORS       bool   `envconfig:"HIBP_CORS" yaml:"cors" toml:"cors"`
	RatePerSec int    `envconfig:"HIBP_SERVER_RPS" yaml:"rate_per_sec" toml:"rate_per_sec"`
	RateBurst  int    `envconfig:"HIBP_SERVER_BURST" yaml:"rate_burst" toml:"rate_burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"HIBP_LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"HIBP_LOG_DEV" yaml:"development" toml:"development"`
}

// Default returns the built-in configuration. The envconfig tags carry
// no default values on purpose: defaults live here, so that file
// values survive an environment pass that leaves a variable unset.
func Default() *Config {
	return &Config{
		Download: DownloadConfig{
			BaseURL:     "https://api.pwnedpasswords.com",
			UserAgent:   "hibp-download/1.0",
			Parallel:    300,
			WaitTimeout: 10 * time.Second,
			Retries:     3,
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      "8082",
			CacheSize: 65536,
			CORS:      true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load builds the effective configuration: defaults, then the file at
// path (if non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads from the environment or falls back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

// applyFile merges a YAML or TOML file over cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}
	return nil
}
