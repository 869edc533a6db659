// Package middleware holds the HTTP middleware specific to the beacon
// APIs: API-key authentication for the ingest endpoints and the
// Redis-backed rate limiter shared across API instances.
package middleware
