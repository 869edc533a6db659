package cache

import (
	"context"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry carries its own deadline because the underlying LRU has
// one global TTL; per-key TTLs are enforced on read.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments
// and tests. Entries are bounded by an LRU and a ceiling TTL.
type MemoryStore struct {
	cache *lru.LRU[string, memoryEntry]
}

// NewMemoryStore creates a memory store holding at most maxEntries
// values. maxTTL is the upper bound on any entry's lifetime.
func NewMemoryStore(maxEntries int, maxTTL time.Duration) *MemoryStore {
	if maxEntries < 10 {
		maxEntries = 10
	}
	return &MemoryStore{
		cache: lru.NewLRU[string, memoryEntry](maxEntries, nil, maxTTL),
	}
}

// Get returns the cached value, or ErrMiss when absent or expired.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := s.cache.Get(key)
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrMiss
	}
	return entry.value, nil
}

// Set stores a value with a TTL.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Add(key, memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete removes specific keys.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		s.cache.Remove(k)
	}
	return nil
}

// DeleteByPattern removes every key matching a glob pattern.
func (s *MemoryStore) DeleteByPattern(ctx context.Context, pattern string) error {
	for _, k := range s.cache.Keys() {
		if ok, _ := path.Match(pattern, k); ok {
			s.cache.Remove(k)
		}
	}
	return nil
}
