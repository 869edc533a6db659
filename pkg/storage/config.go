package storage

import "time"

// Config holds storage configuration for PostgreSQL and Redis.
type Config struct {
	// PostgreSQL
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis (queue, cache, rate limiting)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache TTLs by query type
	CacheTTL map[string]time.Duration
}

// DefaultConfig returns storage defaults suitable for local development.
func DefaultConfig() Config {
	return Config{
		PostgresURL:      "postgres://localhost:5432/beacon?sslmode=disable",
		PostgresMaxConns: 10,
		PostgresMinConns: 2,
		PostgresTimeout:  5 * time.Second,
		RedisURL:         "redis://localhost:6379/0",
		RedisDB:          -1,
		CacheTTL: map[string]time.Duration{
			"summary":    60 * time.Second,
			"timeseries": 60 * time.Second,
			"breakdown":  60 * time.Second,
			"pages":      120 * time.Second,
			"slow_pages": 120 * time.Second,
		},
	}
}
