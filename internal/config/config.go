package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Env        string
	ServerPort string

	DatabaseType string // sqlite, postgres, mysql
	DatabasePath string
	DatabaseURL  string

	// Timezone defines the day boundary for streaks ("UTC", "Local" or an IANA zone)
	Timezone        string
	FamilyPoolGrant int

	CacheProvider string // memory, redis
	RedisURL      string
	CacheTTL      time.Duration

	EvaluatorAPIKey     string
	EvaluatorBaseURL    string
	EvaluatorModel      string
	EvaluatorTimeout    time.Duration
	EvaluatorMaxRetries int

	EvaluateRateLimit int // requests per user per minute

	AdminJWTSecret string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	EmailDebug   bool
	AppBaseURL   string

	// Warnings collects values that failed to parse and fell back to defaults
	Warnings []string
}

// Load reads configuration from the environment (and a .env file when present)
// with sensible defaults
func Load() *Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Env:        getEnv("APP_ENV", "development"),
		ServerPort: getEnv("PORT", "8080"),

		DatabaseType: getEnv("DB_TYPE", "sqlite"),
		DatabasePath: getEnv("DB_PATH", "./thinkfirst.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		Timezone: getEnv("TIMEZONE", "UTC"),

		CacheProvider: getEnv("CACHE_PROVIDER", "memory"),
		RedisURL:      getEnv("REDIS_URL", ""),

		EvaluatorAPIKey:  getEnv("EVALUATOR_API_KEY", ""),
		EvaluatorBaseURL: getEnv("EVALUATOR_BASE_URL", "https://api.openai.com/v1"),
		EvaluatorModel:   getEnv("EVALUATOR_MODEL", "gpt-4o-mini"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "ThinkFirst"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),
	}

	cfg.FamilyPoolGrant = cfg.getInt("FAMILY_POOL_GRANT", 5)
	cfg.CacheTTL = cfg.getDuration("CACHE_TTL", 10*time.Minute)
	cfg.EvaluatorTimeout = cfg.getDuration("EVALUATOR_TIMEOUT", 30*time.Second)
	cfg.EvaluatorMaxRetries = cfg.getInt("EVALUATOR_MAX_RETRIES", 3)
	cfg.EvaluateRateLimit = cfg.getInt("RATE_LIMIT_EVALUATE", 20)
	cfg.EmailDebug = cfg.getBool("EMAIL_DEBUG", false)

	return cfg
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %d", key, raw, defaultValue))
		return defaultValue
	}
	return v
}

func (c *Config) getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %s", key, raw, defaultValue))
		return defaultValue
	}
	return v
}

func (c *Config) getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using %t", key, raw, defaultValue))
		return defaultValue
	}
	return v
}
