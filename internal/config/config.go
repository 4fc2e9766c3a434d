package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is built once at process start and handed to the components
// that need it. Nothing re-reads the environment after Load.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8000"`

	// BaseURL decides whether session cookies require TLS transport.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URI"`

	SessionSecret string `env:"SESSION_SECRET"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast: without provider credentials or a session secret
// the auth routes cannot be served safely, so the process must not start.
func (c Config) Validate() error {
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return errors.New("config: GOOGLE_CLIENT_ID is required")
	}
	if strings.TrimSpace(c.GoogleClientSecret) == "" {
		return errors.New("config: GOOGLE_CLIENT_SECRET is required")
	}
	if strings.TrimSpace(c.GoogleRedirectURL) == "" {
		return errors.New("config: GOOGLE_REDIRECT_URI is required")
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("config: SESSION_SECRET is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	return nil
}

// CookieSecure reports whether session cookies must be Secure-only,
// derived from the public base URL's scheme.
func (c Config) CookieSecure() bool {
	return strings.HasPrefix(strings.ToLower(c.BaseURL), "https://")
}
