// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration.
type Config struct {
	// Logging
	LogLevel string

	// Session / fetch layer
	RequestTimeout  time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	MaxConcurrent   int
	UserAgent       string
	DomainRateLimit map[string]float64 // requests per second, per registrable domain

	// Circuit breaker
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	// Headless fetching for hosts that render behind JavaScript
	HeadlessHosts     []string
	HeadlessNoSandbox bool

	// Snapshot cache (Redis); empty address disables caching
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// Tag database (SQLite)
	TagDBPath string

	// API server
	ListenAddr string
	APIToken   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:                getEnv("MUSUBI_LOG_LEVEL", "info"),
		RequestTimeout:          getDuration("MUSUBI_REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:           getInt("MUSUBI_RETRY_ATTEMPTS", 3),
		RetryDelay:              getDuration("MUSUBI_RETRY_DELAY", 2*time.Second),
		MaxConcurrent:           getInt("MUSUBI_MAX_CONCURRENT", 4),
		UserAgent:               getEnv("MUSUBI_USER_AGENT", "musubi/1.0"),
		DomainRateLimit:         map[string]float64{},
		CircuitBreakerThreshold: getInt("MUSUBI_CB_THRESHOLD", 5),
		CircuitBreakerTimeout:   getDuration("MUSUBI_CB_TIMEOUT", time.Minute),
		HeadlessHosts:           getList("MUSUBI_HEADLESS_HOSTS", []string{"twitter.com", "x.com"}),
		HeadlessNoSandbox:       getBool("MUSUBI_HEADLESS_NO_SANDBOX", false),
		RedisAddr:               getEnv("MUSUBI_REDIS_ADDR", ""),
		RedisPassword:           getEnv("MUSUBI_REDIS_PASSWORD", ""),
		RedisDB:                 getInt("MUSUBI_REDIS_DB", 0),
		SnapshotTTL:             getDuration("MUSUBI_SNAPSHOT_TTL", 24*time.Hour),
		TagDBPath:               getEnv("MUSUBI_TAGDB_PATH", "musubi.db"),
		ListenAddr:              getEnv("MUSUBI_LISTEN_ADDR", ":8080"),
		APIToken:                getEnv("MUSUBI_API_TOKEN", ""),
	}

	// MUSUBI_DOMAIN_RATE_LIMIT="pixiv.net=2,nijie.info=0.5"
	if raw := os.Getenv("MUSUBI_DOMAIN_RATE_LIMIT"); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("invalid MUSUBI_DOMAIN_RATE_LIMIT entry %q", pair)
			}
			rps, err := strconv.ParseFloat(kv[1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid rate for domain %s: %w", kv[0], err)
			}
			cfg.DomainRateLimit[kv[0]] = rps
		}
	}

	if cfg.RetryAttempts < 1 {
		return nil, fmt.Errorf("MUSUBI_RETRY_ATTEMPTS must be >= 1, got %d", cfg.RetryAttempts)
	}
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("MUSUBI_MAX_CONCURRENT must be >= 1, got %d", cfg.MaxConcurrent)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return fallback
}
