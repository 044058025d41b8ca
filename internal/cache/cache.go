// Package cache is a small TTL cache for derived datastore reads with exact
// and prefix invalidation.
package cache

import (
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired entries are purged
const DefaultCleanupInterval = 5 * time.Minute

// Stats is a snapshot of cache counters
type Stats struct {
	Hits        uint64
	Misses      uint64
	Invalidated uint64
	Items       int
}

// Cache maps keys to values with a per-key TTL
type Cache struct {
	store       *gocache.Cache
	hits        atomic.Uint64
	misses      atomic.Uint64
	invalidated atomic.Uint64
	generation  atomic.Uint64 // bumped by every invalidation
}

// New creates a cache whose expired entries are purged every cleanupInterval
func New(cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Cache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns the live value for key
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores value under key for ttl
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Delete removes key
func (c *Cache) Delete(key string) {
	c.generation.Add(1)
	c.store.Delete(key)
	c.invalidated.Add(1)
}

// DeletePrefix removes every key starting with prefix and returns the count
func (c *Cache) DeletePrefix(prefix string) int {
	c.generation.Add(1)
	n := 0
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
			n++
		}
	}
	c.invalidated.Add(uint64(n))
	return n
}

// Flush removes all entries
func (c *Cache) Flush() {
	c.generation.Add(1)
	n := c.store.ItemCount()
	c.store.Flush()
	c.invalidated.Add(uint64(n))
}

// ItemCount returns the number of entries, including expired ones not yet purged
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// Stats returns the current counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Invalidated: c.invalidated.Load(),
		Items:       c.store.ItemCount(),
	}
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result for ttl. Errors are not cached, and neither is a result loaded
// while an invalidation ran, since it may predate the change.
func GetOrLoad[T any](c *Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	gen := c.generation.Load()
	v, err := load()
	if err != nil {
		return v, err
	}
	if c.generation.Load() == gen {
		c.Set(key, v, ttl)
	}
	return v, nil
}
