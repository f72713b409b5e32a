// Package config loads server configuration from the environment.
// A .env file in the working directory is honored for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIKey  = errors.New("ENTASE_API_KEY is not set")
	ErrMissingBaseURL = errors.New("ENTASE_BASE_URL is not set")
)

// Config holds all runtime configuration for the server.
type Config struct {
	Port        int
	Environment string

	DatabasePath string
	SessionDir   string
	LogFile      string

	EntaseAPIKey  string
	EntaseBaseURL string

	// CronSecret authorizes the scheduler-invoked sync endpoints.
	CronSecret string

	// SyncIntervalMinutes controls the background incremental sync loop.
	// Zero disables the loop; the HTTP triggers keep working either way.
	SyncIntervalMinutes int

	// SyncRefreshExisting controls the full-rebuild conflict policy: when
	// false (the default) a show whose slug already exists locally is left
	// untouched so admin edits survive rebuilds; when true matched shows
	// are refreshed with upstream fields.
	SyncRefreshExisting bool
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                envInt("PORT", 8080),
		Environment:         envString("ENVIRONMENT", "development"),
		DatabasePath:        envString("DATABASE_PATH", "data/stagehall.db"),
		SessionDir:          envString("SESSION_DIR", "data"),
		LogFile:             os.Getenv("LOG_FILE"),
		EntaseAPIKey:        os.Getenv("ENTASE_API_KEY"),
		EntaseBaseURL:       envString("ENTASE_BASE_URL", "https://api.entase.com/v2"),
		CronSecret:          os.Getenv("CRON_SECRET"),
		SyncIntervalMinutes: envInt("SYNC_INTERVAL_MINUTES", 0),
		SyncRefreshExisting: envBool("SYNC_REFRESH_EXISTING", false),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}

	return cfg, nil
}

// ValidateSync checks that the upstream credentials required by the sync
// subsystem are present. Called before any sync work is attempted so a
// misconfigured deployment fails fast instead of mid-run.
func (c *Config) ValidateSync() error {
	if strings.TrimSpace(c.EntaseAPIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.EntaseBaseURL) == "" {
		return ErrMissingBaseURL
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
