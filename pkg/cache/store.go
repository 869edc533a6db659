package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache backend.
type Store interface {
	// Get returns the cached value, or ErrMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes specific keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching a glob pattern, for
	// example "summary:demo:*".
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Key joins parts into a cache key. The first part names the result
// type and doubles as the metric label for hit/miss counters.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// keyType extracts the leading segment of a key for metric labels.
func keyType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
