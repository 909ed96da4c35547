package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Storage: postgres when DatabaseURL is set, sqlite otherwise.
	DatabaseURL string
	SQLitePath  string

	// RedisURL enables the cross-process fan-out bus and rate limiting.
	RedisURL string

	// DirectoryURL points at the platform's user directory. When empty,
	// IdentityMap ("user1=+56911111111,...") seeds a static resolver.
	DirectoryURL string
	IdentityMap  string

	// ClaimKeyHash is the bcrypt hash of the channel agent's pre-shared
	// claim key. Empty disables the check (development only).
	ClaimKeyHash string

	NotifyTimeout time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    os.Getenv("SQLITE_PATH"),
		RedisURL:      os.Getenv("REDIS_URL"),
		DirectoryURL:  os.Getenv("DIRECTORY_URL"),
		IdentityMap:   os.Getenv("IDENTITY_MAP"),
		ClaimKeyHash:  os.Getenv("CLAIM_KEY_HASH"),
		NotifyTimeout: getEnvDuration("NOTIFY_TIMEOUT_MS", 3000) * time.Millisecond,
	}

	if cfg.Env == "production" {
		if cfg.DirectoryURL == "" {
			panic("DIRECTORY_URL is required in production")
		}
		if cfg.ClaimKeyHash == "" {
			panic("CLAIM_KEY_HASH is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(defaultValue)
}
