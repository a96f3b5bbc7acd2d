/**
 * @description
 * Configuration loader for the Stocky reward backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (Database URL, timezone) are missing or invalid.
 * - Load() returns a fully populated Config struct; nothing reads the environment afterwards.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	Rewards RewardsConfig
	Pricing PricingConfig
	Auth    AuthConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string // "development", "staging", "production" or "test"
	RequestTimeout time.Duration
	AllowOrigins   string
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// RewardsConfig controls how reward events are bucketed into calendar days.
type RewardsConfig struct {
	// Timezone is the IANA zone that defines "today" and the daily buckets of
	// the historical series.
	Timezone string
	Location *time.Location
}

// PricingConfig holds market data settings
type PricingConfig struct {
	LookupTimeout  time.Duration
	StaleAfter     time.Duration
	UpdateInterval time.Duration
	CacheTTL       time.Duration
	FeedURL        string // Optional websocket market-data feed; simulator is used when empty
}

// AuthConfig holds bearer-token validation settings
type AuthConfig struct {
	JWKSURL string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (containers inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("GO_ENV", "development"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
			AllowOrigins:   getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000, http://localhost:3001"),
		},
		DB: DBConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Rewards: RewardsConfig{
			Timezone: getEnv("REWARD_TIMEZONE", "UTC"),
		},
		Pricing: PricingConfig{
			LookupTimeout:  getEnvAsDuration("PRICE_LOOKUP_TIMEOUT", 2*time.Second),
			StaleAfter:     getEnvAsDuration("PRICE_STALE_AFTER", time.Hour),
			UpdateInterval: getEnvAsDuration("PRICE_UPDATE_INTERVAL", time.Hour),
			CacheTTL:       getEnvAsDuration("PRICE_CACHE_TTL", time.Minute),
			FeedURL:        getEnv("PRICE_FEED_URL", ""),
		},
		Auth: AuthConfig{
			JWKSURL: getEnv("AUTH_JWKS_URL", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables and resolves derived values
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(cfg.Rewards.Timezone)
	if err != nil {
		return fmt.Errorf("invalid REWARD_TIMEZONE %q: %w", cfg.Rewards.Timezone, err)
	}
	cfg.Rewards.Location = loc

	if cfg.Pricing.LookupTimeout <= 0 {
		return fmt.Errorf("PRICE_LOOKUP_TIMEOUT must be positive")
	}
	if cfg.Pricing.UpdateInterval <= 0 {
		return fmt.Errorf("PRICE_UPDATE_INTERVAL must be positive")
	}
	if cfg.Auth.JWKSURL == "" && cfg.Server.Env == "production" {
		// Reward creation is unauthenticated without a JWKS endpoint
		fmt.Println("Warning: AUTH_JWKS_URL is missing. POST /reward will accept unauthenticated requests.")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as a time.Duration ("2s", "1h")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
