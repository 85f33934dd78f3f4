// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// RuleCacheConfig provides settings for the scoring rule snapshot cache.
type RuleCacheConfig interface {
	GetRuleCacheTTL() time.Duration
	GetRuleCacheBackend() string
	GetRulesFile() string
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// ScoringConfig provides settings for lead recalculation and the decay sweep.
type ScoringConfig interface {
	GetActivityLimit() int
	GetDecaySchedule() string
	GetDecayMinMomentum() int
	GetDecayBatchSize() int
	GetDecayConcurrency() int
	GetDecayBatchDelay() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	DatabaseMaxConns int
	MigrationsOnBoot bool
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	RuleCacheTTL     time.Duration
	RuleCacheBackend string
	RulesFile        string
	ActivityLimit    int
	DecaySchedule    string
	DecayMinMomentum int
	DecayBatchSize   int
	DecayConcurrency int
	DecayBatchDelay  time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string  { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int { return c.DatabaseMaxConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// RuleCacheConfig implementation
func (c *Config) GetRuleCacheTTL() time.Duration { return c.RuleCacheTTL }
func (c *Config) GetRuleCacheBackend() string    { return c.RuleCacheBackend }
func (c *Config) GetRulesFile() string           { return c.RulesFile }

// ScoringConfig implementation
func (c *Config) GetActivityLimit() int             { return c.ActivityLimit }
func (c *Config) GetDecaySchedule() string          { return c.DecaySchedule }
func (c *Config) GetDecayMinMomentum() int          { return c.DecayMinMomentum }
func (c *Config) GetDecayBatchSize() int            { return c.DecayBatchSize }
func (c *Config) GetDecayConcurrency() int          { return c.DecayConcurrency }
func (c *Config) GetDecayBatchDelay() time.Duration { return c.DecayBatchDelay }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: mustInt(getEnv("DATABASE_MAX_CONNS", "25")),
		MigrationsOnBoot: strings.EqualFold(getEnv("MIGRATIONS_ON_BOOT", "true"), "true"),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "scoring"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		RuleCacheTTL:     mustDuration(getEnv("RULE_CACHE_TTL", "5m")),
		RuleCacheBackend: strings.ToLower(getEnv("RULE_CACHE_BACKEND", "memory")),
		RulesFile:        getEnv("RULES_FILE", ""),
		ActivityLimit:    mustInt(getEnv("SCORING_ACTIVITY_LIMIT", "100")),
		DecaySchedule:    getEnv("DECAY_SCHEDULE", "0 */15 * * * *"),
		DecayMinMomentum: mustInt(getEnv("DECAY_MIN_MOMENTUM", "1")),
		DecayBatchSize:   mustInt(getEnv("DECAY_BATCH_SIZE", "100")),
		DecayConcurrency: mustInt(getEnv("DECAY_CONCURRENCY", "8")),
		DecayBatchDelay:  mustDuration(getEnv("DECAY_BATCH_DELAY", "200ms")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.RuleCacheBackend != "memory" && cfg.RuleCacheBackend != "redis" {
		return nil, fmt.Errorf("RULE_CACHE_BACKEND must be memory or redis, got %q", cfg.RuleCacheBackend)
	}
	if cfg.RuleCacheBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when RULE_CACHE_BACKEND is redis")
	}
	if cfg.RuleCacheTTL <= 0 {
		return nil, fmt.Errorf("RULE_CACHE_TTL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
