// Package storage holds shared configuration for the PostgreSQL metrics
// store and the Redis instance backing the queue and cache.
package storage
