package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration. Values come from an optional
// TOML file and are then overridden by environment variables.
type Config struct {
	// Server
	Port    int    `toml:"port"`
	AppName string `toml:"app_name"`

	// Mirrors
	StoreRoot   string        `toml:"store_root"`
	GitBinary   string        `toml:"git_binary"`
	SyncTimeout time.Duration `toml:"sync_timeout"`
	DiffTimeout time.Duration `toml:"diff_timeout"`

	// Database (empty disables persistence)
	DatabaseURL string `toml:"database_url"`

	// Frontend
	FrontendDir string `toml:"frontend_dir"`
	FrontendURL string `toml:"frontend_url"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Webhooks
	WebhookWorkers   int           `toml:"webhook_workers"`
	WebhookAutoClone bool          `toml:"webhook_auto_clone"`
	JobRetention     time.Duration `toml:"job_retention"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:             8000,
		AppName:          "Git Mirror",
		StoreRoot:        "./data",
		GitBinary:        "git",
		SyncTimeout:      5 * time.Minute,
		DiffTimeout:      time.Minute,
		FrontendDir:      "./frontend",
		FrontendURL:      "*",
		LogLevel:         "info",
		LogFormat:        "text",
		WebhookWorkers:   4,
		WebhookAutoClone: true,
		JobRetention:     time.Hour,
	}
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = envOrDefaultInt("PORT", c.Port)
	c.AppName = envOrDefault("APP_NAME", c.AppName)

	c.StoreRoot = envOrDefault("REPO_STORE_ROOT", c.StoreRoot)
	c.GitBinary = envOrDefault("GIT_BINARY", c.GitBinary)
	c.SyncTimeout = envOrDefaultDuration("GIT_SYNC_TIMEOUT", c.SyncTimeout)
	c.DiffTimeout = envOrDefaultDuration("GIT_DIFF_TIMEOUT", c.DiffTimeout)

	c.DatabaseURL = envOrDefault("DATABASE_URL", c.DatabaseURL)

	c.FrontendDir = envOrDefault("FRONTEND_DIR", c.FrontendDir)
	c.FrontendURL = envOrDefault("FRONTEND_URL", c.FrontendURL)

	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("LOG_FORMAT", c.LogFormat)

	c.WebhookWorkers = envOrDefaultInt("WEBHOOK_WORKERS", c.WebhookWorkers)
	c.WebhookAutoClone = envOrDefaultBool("WEBHOOK_AUTO_CLONE", c.WebhookAutoClone)
	c.JobRetention = envOrDefaultDuration("JOB_RETENTION", c.JobRetention)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.StoreRoot == "" {
		return fmt.Errorf("store root is required")
	}
	if c.SyncTimeout <= 0 || c.DiffTimeout <= 0 {
		return fmt.Errorf("git timeouts must be positive")
	}
	if c.WebhookWorkers < 1 {
		return fmt.Errorf("webhook workers must be at least 1, got %d", c.WebhookWorkers)
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("job retention must be positive")
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PersistenceEnabled reports whether a database is configured.
func (c *Config) PersistenceEnabled() bool {
	return c.DatabaseURL != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
