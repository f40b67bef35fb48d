package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the sashi service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	LogLevel string
	LogFile  string

	DatabaseURL  string
	DatabasePath string
	StoreTimeout time.Duration

	RedisURL     string
	ViewCacheTTL time.Duration

	InboxDefaultLimit int
	InboxLandingLimit int
	InboxMaxLimit     int
}

// Load reads a .env file when present, then environment variables, and
// applies safe defaults. Variables already set in the process win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "sashi"),
		AllowAnyOrigin:    false,
		LogLevel:          envOrDefault("APP_LOG_LEVEL", "info"),
		LogFile:           stringsTrimSpace("APP_LOG_FILE"),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		DatabasePath:      envOrDefault("DATABASE_PATH", "sashi.db"),
		RedisURL:          stringsTrimSpace("REDIS_URL"),
		ShutdownTimeout:   15 * time.Second,
		StoreTimeout:      5 * time.Second,
		ViewCacheTTL:      5 * time.Minute,
		InboxDefaultLimit: 50,
		InboxLandingLimit: 100,
		InboxMaxLimit:     500,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreTimeout, err = durationFromEnv("STORE_TIMEOUT", cfg.StoreTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ViewCacheTTL, err = durationFromEnv("VIEW_CACHE_TTL", cfg.ViewCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.InboxDefaultLimit, err = intFromEnv("INBOX_DEFAULT_LIMIT", cfg.InboxDefaultLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.InboxLandingLimit, err = intFromEnv("INBOX_LANDING_LIMIT", cfg.InboxLandingLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.InboxMaxLimit, err = intFromEnv("INBOX_MAX_LIMIT", cfg.InboxMaxLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.StoreTimeout < 100*time.Millisecond {
		return Config{}, fmt.Errorf("STORE_TIMEOUT must be at least 100ms")
	}
	if cfg.ViewCacheTTL <= 0 {
		return Config{}, fmt.Errorf("VIEW_CACHE_TTL must be positive")
	}
	if cfg.InboxDefaultLimit <= 0 {
		return Config{}, fmt.Errorf("INBOX_DEFAULT_LIMIT must be positive")
	}
	if cfg.InboxLandingLimit <= 0 {
		return Config{}, fmt.Errorf("INBOX_LANDING_LIMIT must be positive")
	}
	if cfg.InboxMaxLimit < cfg.InboxDefaultLimit || cfg.InboxMaxLimit < cfg.InboxLandingLimit {
		return Config{}, fmt.Errorf("INBOX_MAX_LIMIT must be >= INBOX_DEFAULT_LIMIT and INBOX_LANDING_LIMIT")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
