package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Queue worker configuration
	Worker WorkerConfig

	// Rollup job configuration
	Rollup RollupConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Rate limit budget per client IP on the ingest endpoints
	RateLimitPerMinute int
}

// WorkerConfig sizes the queue consumers.
type WorkerConfig struct {
	MetricsConcurrency int
	ErrorsConcurrency  int
}

// RollupConfig drives the daily rollup and retention sweep.
type RollupConfig struct {
	// Schedule is a cron expression evaluated in UTC.
	Schedule  string
	Retention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Worker:        loadWorkerConfig(),
		Rollup:        loadRollupConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:               getEnv("BEACON_HOST", "0.0.0.0"),
		Port:               getEnv("BEACON_PORT", "8080"),
		ReadTimeout:        getEnvDuration("BEACON_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("BEACON_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getEnvDuration("BEACON_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("BEACON_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:         getEnv("BEACON_HEALTH_PORT", "9090"),
		RateLimitPerMinute: getEnvInt("BEACON_RATE_LIMIT_PER_MINUTE", 600),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("BEACON_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("BEACON_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("BEACON_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("BEACON_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	if redisURL := getEnv("BEACON_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("BEACON_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("BEACON_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("BEACON_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("BEACON_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache TTL overrides, e.g. BEACON_CACHE_TTL_SUMMARY=30s.
	for keyType := range cfg.CacheTTL {
		envKey := "BEACON_CACHE_TTL_" + strings.ToUpper(keyType)
		if ttl := getEnvDuration(envKey, 0); ttl > 0 {
			cfg.CacheTTL[keyType] = ttl
		}
	}

	return cfg
}

// loadWorkerConfig loads queue worker sizing from environment
func loadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MetricsConcurrency: getEnvInt("BEACON_METRICS_CONCURRENCY", 5),
		ErrorsConcurrency:  getEnvInt("BEACON_ERRORS_CONCURRENCY", 2),
	}
}

// loadRollupConfig loads rollup job settings from environment
func loadRollupConfig() RollupConfig {
	return RollupConfig{
		Schedule:  getEnv("BEACON_ROLLUP_SCHEDULE", "5 0 * * *"),
		Retention: getEnvDuration("BEACON_RETENTION", 90*24*time.Hour),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("BEACON_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("BEACON_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Worker.MetricsConcurrency < 1 || c.Worker.ErrorsConcurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1")
	}
	if c.Rollup.Retention < 24*time.Hour {
		return fmt.Errorf("retention must be at least one day")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
