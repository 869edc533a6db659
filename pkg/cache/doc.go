// Package cache provides the read-through result cache for the query
// service.
//
// Two Store implementations are available: a Redis-backed store shared
// across instances, and an in-memory LRU store for single-instance
// deployments and tests. Cached values are JSON-encoded so both stores
// hold the same representation.
package cache
