package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is an in-memory cache for upstream API results. Entries expire
// after a fixed duration; a missing or expired key is populated by at
// most one in-flight fetch shared across concurrent callers.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// NewTTL creates a cache whose entries expire after ttl
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return NewTTLWithClock[V](ttl, time.Now)
}

// NewTTLWithClock creates a cache with an injectable clock for tests
func NewTTLWithClock[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     now,
	}
}

// Get retrieves a value if present and not expired
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the cache's TTL
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes a key
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// GetOrFetch returns the cached value for key, calling fetch at most once
// across concurrent callers when the key is absent or expired. force skips
// the cached value but still shares an in-flight fetch. Fetch errors are
// returned without poisoning the cache.
func (c *TTL[V]) GetOrFetch(key string, force bool, fetch func() (V, error)) (V, error) {
	if !force {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if !force {
			// Another caller may have populated the key while we waited.
			if v, ok := c.Get(key); ok {
				return v, nil
			}
		}
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
