package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/walletrank/walletrank/internal/secrets"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Nansen profiler API
	NansenAPIBaseURL string
	NansenAPIKey     string
	NansenAPIRPS     float64

	// Wallet dataset cache
	DatasetCacheTTL    time.Duration
	CachePurgeInterval time.Duration
	RedisAddr          string

	// Seed invite codes created at startup if missing (comma-separated)
	SeedInviteCodes []string

	// HTTP
	HTTPPort int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		DatabaseDSN:         secrets.GetOptionalSecret("DATABASE_DSN", "walletrank:walletrank@tcp(mysql:3306)/walletrank?parseTime=true"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		NansenAPIBaseURL:    getEnv("NANSEN_API_BASE_URL", "https://api.nansen.ai/api/v1"),
		NansenAPIKey:        secrets.GetOptionalSecret("NANSEN_API_KEY", ""),
		NansenAPIRPS:        getEnvFloat("NANSEN_API_RPS", 2.0),
		DatasetCacheTTL:     time.Duration(getEnvInt("DATASET_CACHE_TTL_MINS", 360)) * time.Minute,
		CachePurgeInterval:  time.Duration(getEnvInt("CACHE_PURGE_INTERVAL_MINS", 60)) * time.Minute,
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
	}

	if seeds := getEnv("SEED_INVITE_CODES", ""); seeds != "" {
		cfg.SeedInviteCodes = parseCSV(seeds)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.NansenAPIKey == "" {
		return fmt.Errorf("NANSEN_API_KEY is required")
	}
	if c.DatasetCacheTTL <= 0 {
		return fmt.Errorf("DATASET_CACHE_TTL_MINS must be positive")
	}
	for _, code := range c.SeedInviteCodes {
		if len(code) != 8 {
			return fmt.Errorf("invalid seed invite code %q: must be 8 characters", code)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range splitCSV(s) {
		if trimmed := trim(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func splitCSV(s string) []string {
	var result []string
	var current string
	for _, char := range s {
		if char == ',' {
			result = append(result, current)
			current = ""
		} else {
			current += string(char)
		}
	}
	if current != "" {
		result = append(result, current)
	}
	return result
}

func trim(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n') {
		end--
	}
	return s[start:end]
}
