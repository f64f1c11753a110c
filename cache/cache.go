package cache

import (
	"strings"
	"sync"
	"time"
)

// Recommended TTLs. Volatile covers data tied to an in-progress tournament,
// static covers completed or rarely-changing aggregates.
const (
	TTLVolatile = 30 * time.Second
	TTLStatic   = 5 * time.Minute
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a process-local key/value store with per-entry TTL and
// substring-based invalidation. It has no persistence and no cross-process
// sharing; correctness under concurrent writers depends on the invalidation
// calls issued by the services after every write.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached value for key. Expired entries are evicted lazily
// here and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// replaced the entry since the read lock was dropped.
		if cur, still := c.entries[key]; still && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, overwriting any existing entry.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate removes every key containing pattern as a substring and returns
// how many entries were removed. An empty pattern clears the whole cache.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := len(c.entries)
		c.entries = make(map[string]entry)
		return n
	}

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, including any not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
