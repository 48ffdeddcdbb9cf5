// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Quote provider identifiers accepted by QUOTE_PROVIDER.
const (
	ProviderYahoo     = "yahoo"
	ProviderTradernet = "tradernet"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	QuoteProvider      string
	TradernetAPIKey    string
	TradernetAPISecret string
	TradernetBaseURL   string

	// Screens that may run refresh sessions; empty means the built-in set
	Screens []string

	// Process-wide ceiling on outbound quote API calls
	MaxCallsPerMinute int
	// How long a rotation loop sleeps when it has nothing to refresh
	EmptyBackoff time.Duration
	// Freshness window for cached instrument profiles
	ProfileCacheTTL time.Duration
	// Cron expression (with seconds) for the client data cleanup job
	CleanupSchedule string
	// Cron expression (with seconds) for database maintenance
	MaintenanceSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("WATCHFOLIO_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("GO_PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		QuoteProvider:       strings.ToLower(getEnv("QUOTE_PROVIDER", ProviderYahoo)),
		TradernetAPIKey:     getEnv("TRADERNET_API_KEY", ""),
		TradernetAPISecret:  getEnv("TRADERNET_API_SECRET", ""),
		TradernetBaseURL:    getEnv("TRADERNET_BASE_URL", "https://freedom24.com"),
		Screens:             getEnvAsList("ROTATION_SCREENS", []string{"portfolio", "details"}),
		MaxCallsPerMinute:   getEnvAsInt("QUOTE_MAX_CALLS_PER_MINUTE", 60),
		EmptyBackoff:        time.Duration(getEnvAsInt("ROTATION_EMPTY_BACKOFF_MS", 500)) * time.Millisecond,
		ProfileCacheTTL:     time.Duration(getEnvAsInt("PROFILE_CACHE_TTL_HOURS", 168)) * time.Hour,
		CleanupSchedule:     getEnv("CLIENT_DATA_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		MaintenanceSchedule: getEnv("DATABASE_MAINTENANCE_SCHEDULE", "0 30 3 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.MaxCallsPerMinute <= 0 {
		return fmt.Errorf("QUOTE_MAX_CALLS_PER_MINUTE must be positive, got %d", c.MaxCallsPerMinute)
	}
	if c.EmptyBackoff <= 0 {
		return fmt.Errorf("ROTATION_EMPTY_BACKOFF_MS must be positive")
	}

	switch c.QuoteProvider {
	case ProviderYahoo:
	case ProviderTradernet:
		if c.TradernetAPIKey == "" || c.TradernetAPISecret == "" {
			return fmt.Errorf("tradernet quote provider requires TRADERNET_API_KEY and TRADERNET_API_SECRET")
		}
	default:
		return fmt.Errorf("unknown QUOTE_PROVIDER %q", c.QuoteProvider)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blank items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
