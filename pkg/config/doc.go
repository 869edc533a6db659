// Package config loads application configuration from environment
// variables with sensible defaults for local development.
//
// # Configuration Structure
//
// Server settings:
//
//	BEACON_HOST="0.0.0.0"
//	BEACON_PORT="8080"
//	BEACON_HEALTH_PORT="9090"
//	BEACON_READ_TIMEOUT="15s"
//	BEACON_WRITE_TIMEOUT="15s"
//	BEACON_RATE_LIMIT_PER_MINUTE="600"
//
// Storage settings:
//
//	BEACON_POSTGRES_URL="postgres://localhost/beacon"
//	BEACON_POSTGRES_MAX_CONNS="10"
//	BEACON_REDIS_URL="redis://localhost:6379/0"
//	BEACON_CACHE_TTL_SUMMARY="60s"
//
// Worker and rollup settings:
//
//	BEACON_METRICS_CONCURRENCY="5"
//	BEACON_ERRORS_CONCURRENCY="2"
//	BEACON_ROLLUP_SCHEDULE="5 0 * * *"
//	BEACON_RETENTION="2160h"
//
// Observability settings:
//
//	BEACON_LOG_LEVEL="info"  # debug, info, warn, error
//	BEACON_METRICS_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
