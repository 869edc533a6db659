package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// Cache wraps a Store with logging and hit/miss accounting.
type Cache struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New creates a cache around a store. metrics may be nil.
func New(store Store, logger *observability.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{store: store, logger: logger, metrics: metrics}
}

// Invalidate removes every cached result matching the pattern.
func (c *Cache) Invalidate(ctx context.Context, pattern string) error {
	return c.store.DeleteByPattern(ctx, pattern)
}

// Cached is the read-through path: return the cached value when
// present, otherwise compute, cache, and return it.
//
// The cache never makes a request fail. A broken store degrades to a
// miss, and a failed write after compute is logged and ignored. A
// compute error is returned as-is and nothing is cached, so a flapping
// query cannot poison subsequent requests.
func Cached[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			c.countHit(key)
			return value, nil
		}
		// Undecodable entry, fall through to recompute.
		c.logger.WithField("key", key).Warn("dropping undecodable cache entry")
		_ = c.store.Delete(ctx, key)
	case errors.Is(err, ErrMiss):
	default:
		c.logger.WithError(err).WithField("key", key).Debug("cache read failed, treating as miss")
	}
	c.countMiss(key)

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if data, err := json.Marshal(value); err == nil {
		if err := c.store.Set(ctx, key, data, ttl); err != nil {
			c.logger.WithError(err).WithField("key", key).Debug("cache write failed")
		}
	}
	return value, nil
}

func (c *Cache) countHit(key string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(keyType(key)).Inc()
	}
}

func (c *Cache) countMiss(key string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(keyType(key)).Inc()
	}
}
