// Package config provides configuration management for civicmon.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup; the analytics
// thresholds are the only part that may be swapped at runtime (see
// LoadThresholds).
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"civicmon/internal/errors"
)

// embeddedEnv contains the .env file embedded at build time.
//
// The embedded file only carries template values; production deployments
// override them through the environment.
//
//go:embed .env
var embeddedEnv string

// Complaint sources understood by COMPLAINT_SOURCE.
const (
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourcePortal   = "portal"
)

// Config holds all application configuration.
type Config struct {
	// Where complaints come from
	Source        string // One of file, sqlite, postgres, portal
	ComplaintFile string // JSON or CSV export read by the file source
	SQLitePath    string // Local snapshot database
	DatabaseURL   string // Postgres DSN for the managed backend
	Municipality  string // Restricts database sources to one municipality; empty means all

	// Portal source (authenticated headless browser)
	PortalLoginURL    string
	PortalAPIURL      string // Paged JSON endpoint, page number appended as ?page=N
	PortalUsername    string
	PortalPassword    string
	PortalMaxPages    int           // Maximum number of pages to fetch per refresh
	PortalRateLimit   float64       // Page requests per second
	MaxLoginRetries   int           // Maximum login attempts before giving up
	LoginRetryDelay   time.Duration // Delay between login retry attempts
	NavigationTimeout time.Duration // Maximum time for page navigation
	WaitTimeout       time.Duration // Maximum time to wait for elements
	WorkerPoolSize    int           // Concurrent page fetch workers

	// Analytics thresholds
	ThresholdsFile  string // Optional YAML overriding analytics defaults
	WatchThresholds bool   // Reload ThresholdsFile when it changes

	// Refresh loop
	RefreshInterval time.Duration // How often the dashboard is rebuilt
	FetchTimeout    time.Duration // Maximum time for one fetch
	MaxFetchRetries int           // Retries before a critical alert

	// Health check and dashboard API
	HealthCheckPort string

	// Telegram digest (optional)
	TelegramBotToken string
	TelegramChatID   string
	DigestEnabled    bool

	// Reason localization (optional)
	TranslateAPIKey   string
	TranslateLanguage string // BCP 47 tag, e.g. "hi" or "gu"

	// PNG delay-risk report (optional)
	ReportImagePath string

	// Shared HTTP client
	HTTPMaxConns int
	HTTPTimeout  time.Duration

	// Debug mode - notifications are logged instead of sent
	DebugMode bool
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse embedded .env file and set as fallback environment variables
//  2. Try to load external .env file (godotenv.Load never overrides env)
//  3. Read environment variables, applying defaults for missing values
//  4. Validate
//
// Returns:
//   - *Config: Fully populated configuration struct
//   - error: *errors.ConfigError if a value is missing or malformed
func LoadConfig() (*Config, error) {
	// External .env must be able to override embedded values, so the
	// embedded keys are remembered and replaced if the file sets them.
	embedded := make(map[string]bool)
	if envMap, err := godotenv.Unmarshal(embeddedEnv); err == nil {
		for k, v := range envMap {
			if _, set := os.LookupEnv(k); !set {
				os.Setenv(k, v)
				embedded[k] = true
			}
		}
	}
	if fileEnv, err := godotenv.Read(); err == nil {
		for k, v := range fileEnv {
			if _, set := os.LookupEnv(k); !set || embedded[k] {
				os.Setenv(k, v)
			}
		}
	}

	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Source:        strings.ToLower(getEnvOrDefault("COMPLAINT_SOURCE", SourceFile)),
		ComplaintFile: getEnvOrDefault("COMPLAINT_FILE", "complaints.json"),
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", "civicmon.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Municipality:  os.Getenv("MUNICIPALITY"),

		PortalLoginURL:    os.Getenv("PORTAL_LOGIN_URL"),
		PortalAPIURL:      os.Getenv("PORTAL_API_URL"),
		PortalUsername:    os.Getenv("PORTAL_USERNAME"),
		PortalPassword:    os.Getenv("PORTAL_PASSWORD"),
		PortalMaxPages:    getEnvInt("PORTAL_MAX_PAGES", 5),
		PortalRateLimit:   getEnvFloat("PORTAL_RATE_LIMIT", 2),
		MaxLoginRetries:   getEnvInt("MAX_LOGIN_RETRIES", 3),
		LoginRetryDelay:   getEnvDuration("LOGIN_RETRY_DELAY", 5*time.Second),
		NavigationTimeout: getEnvDuration("NAVIGATION_TIMEOUT", 60*time.Second),
		WaitTimeout:       getEnvDuration("WAIT_TIMEOUT", 45*time.Second),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 4),

		ThresholdsFile:  os.Getenv("THRESHOLDS_FILE"),
		WatchThresholds: getEnvBool("WATCH_THRESHOLDS", false),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 5*time.Minute),
		MaxFetchRetries: getEnvInt("MAX_FETCH_RETRIES", 2),

		HealthCheckPort: getEnvOrDefault("HEALTH_CHECK_PORT", "8080"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		DigestEnabled:    getEnvBool("DIGEST_ENABLED", true),

		TranslateAPIKey:   os.Getenv("TRANSLATE_API_KEY"),
		TranslateLanguage: getEnvOrDefault("TRANSLATE_LANGUAGE", "en"),

		ReportImagePath: os.Getenv("REPORT_IMAGE_PATH"),

		HTTPMaxConns: getEnvInt("HTTP_MAX_CONNS", 100),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		DebugMode: getEnvBool("DEBUG_MODE", false),
	}
}

// Validate checks that required configuration is present and values are sensible.
//
// Validation rules:
//   - COMPLAINT_SOURCE must name a known source
//   - Each source needs its own location settings
//   - Numeric values must be positive
//
// Returns:
//   - error: *errors.ConfigError naming the offending key, nil if all checks pass
func (c *Config) Validate() error {
	switch c.Source {
	case SourceFile:
		if c.ComplaintFile == "" {
			return errors.NewConfigError("COMPLAINT_FILE", "required for the file source", nil)
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			return errors.NewConfigError("SQLITE_PATH", "required for the sqlite source", nil)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.NewConfigError("DATABASE_URL", "required for the postgres source", nil)
		}
	case SourcePortal:
		if c.PortalLoginURL == "" || c.PortalAPIURL == "" {
			return errors.NewConfigError("PORTAL_LOGIN_URL", "portal login and API URLs are required", nil)
		}
		if c.PortalUsername == "" || c.PortalPassword == "" {
			return errors.NewConfigError("PORTAL_USERNAME", "portal credentials are required", nil)
		}
	default:
		return errors.NewConfigError("COMPLAINT_SOURCE", fmt.Sprintf("unknown source %q", c.Source), nil)
	}

	if c.PortalMaxPages < 1 {
		return errors.NewConfigError("PORTAL_MAX_PAGES", fmt.Sprintf("must be at least 1, got %d", c.PortalMaxPages), nil)
	}
	if c.PortalRateLimit <= 0 {
		return errors.NewConfigError("PORTAL_RATE_LIMIT", fmt.Sprintf("must be positive, got %v", c.PortalRateLimit), nil)
	}
	if c.WorkerPoolSize < 1 {
		return errors.NewConfigError("WORKER_POOL_SIZE", fmt.Sprintf("must be at least 1, got %d", c.WorkerPoolSize), nil)
	}
	if c.RefreshInterval <= 0 {
		return errors.NewConfigError("REFRESH_INTERVAL", "must be positive", nil)
	}
	if c.MaxFetchRetries < 0 {
		return errors.NewConfigError("MAX_FETCH_RETRIES", "must not be negative", nil)
	}
	if c.WatchThresholds && c.ThresholdsFile == "" {
		return errors.NewConfigError("WATCH_THRESHOLDS", "requires THRESHOLDS_FILE", nil)
	}
	return nil
}

// TelegramEnabled reports whether digest notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.DigestEnabled && c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
