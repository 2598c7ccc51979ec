// Package config loads process configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	// BackendURL is the backend origin; the API lives under /api.
	BackendURL  string `env:"BACKEND_URL,default=http://localhost:8000"`
	ServiceName string `env:"SERVICE_NAME,default=storefront"`
	Env         string `env:"ENV,default=dev"`
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	LogFile     string `env:"LOG_FILE"`
	Debug       bool   `env:"DEBUG,default=false"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=20"`
}

// Load reads files (".env" when none are given) if they exist, then decodes
// the environment. Variables already set win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the process cannot start without.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: BACKEND_URL %q is not an absolute URL", c.BackendURL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// APIBase is the root every backend locator is derived from.
func (c Config) APIBase() string {
	return strings.TrimRight(c.BackendURL, "/") + "/api"
}
