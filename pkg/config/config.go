package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port    string `env:"PORT" envDefault:"3001"`
	AppName string `env:"APP_NAME" envDefault:"FamilyHub Auth"`

	// Auth API
	AuthAPIBaseURL     string        `env:"AUTH_API_BASE_URL" envDefault:"http://localhost:8080"`
	AuthRequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"10s"`

	// Database (empty = in-memory persistence)
	DatabaseURL string `env:"DATABASE_URL"`

	// SessionKey names the persisted session slot; defaults to the Auth API host.
	SessionKey string `env:"SESSION_KEY"`

	InvitePreviewDebounce time.Duration `env:"INVITE_PREVIEW_DEBOUNCE" envDefault:"500ms"`
	PasswordMinScore      int           `env:"PASSWORD_MIN_SCORE" envDefault:"3"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	AuditEnabled bool   `env:"AUDIT_ENABLED" envDefault:"true"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.AuthAPIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AUTH_API_BASE_URL must be an absolute URL, got %q", c.AuthAPIBaseURL)
	}
	if c.PasswordMinScore < 0 || c.PasswordMinScore > 4 {
		return fmt.Errorf("PASSWORD_MIN_SCORE must be between 0 and 4, got %d", c.PasswordMinScore)
	}
	if c.AuthRequestTimeout <= 0 {
		return fmt.Errorf("AUTH_REQUEST_TIMEOUT must be positive, got %s", c.AuthRequestTimeout)
	}
	return nil
}

// DSN returns the database URL with the password masked, for logging.
func (c *Config) DSN() string {
	if c.DatabaseURL == "" {
		return "memory"
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "postgres://***"
	}
	return u.Redacted()
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
