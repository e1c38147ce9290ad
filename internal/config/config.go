// Package config loads server configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting. Values come from the environment with
// sensible development defaults; SIGNING_KEY has none and must be set.
type Config struct {
	// HTTP
	Addr string

	// Storage
	DBPath string

	// Tokens
	SigningKey string
	TokenTTL   time.Duration

	// AdminToken gates the operator endpoints. Empty disables them.
	AdminToken string

	// Invites
	InviteTTL time.Duration

	// Janitor
	JanitorInterval  time.Duration
	JanitorPageSize  int
	JanitorMaxPerRun int
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Addr:             getenv("ADDR", ":8080"),
		DBPath:           getenv("DB_PATH", "./data/divvy.db"),
		SigningKey:       must("SIGNING_KEY"),
		TokenTTL:         getdur("TOKEN_TTL", 24*time.Hour),
		AdminToken:       getenv("ADMIN_TOKEN", ""),
		InviteTTL:        getdur("INVITE_TTL", 7*24*time.Hour),
		JanitorInterval:  getdur("JANITOR_INTERVAL", 5*time.Minute),
		JanitorPageSize:  getint("JANITOR_PAGE_SIZE", 500),
		JanitorMaxPerRun: getint("JANITOR_MAX_PER_RUN", 5),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("invalid integer, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("invalid duration, using default", "key", k, "value", v, "default", def)
	}
	return def
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("missing required env", "key", k)
		os.Exit(1)
	}
	return v
}
