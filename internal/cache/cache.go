// Package cache provides a time-boxed in-memory key/value store with
// compute-if-absent semantics.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	expiresAt time.Time
	value     V
}

// Cache is a thread-safe TTL cache. Expired entries are evicted lazily on
// read; there is no background sweep.
type Cache[K comparable, V any] struct {
	entries map[K]entry[V]
	now     func() time.Time
	mu      sync.RWMutex
}

// New creates an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// Get returns the unexpired value for key, if present.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced the eviction.
		if cur, still := c.entries[key]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, overwriting any previous entry.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len returns the number of entries, counting any not yet lazily evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrSet returns the cached value for key if present and unexpired without
// invoking compute. Otherwise it invokes compute, stores the result with a
// fresh expiry, and returns it. Compute errors propagate and are never
// cached. Concurrent misses on the same key may each recompute; that is a
// known inefficiency, not a correctness bug.
func (c *Cache[K, V]) GetOrSet(ctx context.Context, key K, ttl time.Duration, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, v, ttl)
	return v, nil
}
