// Package cache is a TTL-bound in-memory cache of computed query answers.
//
// Keys are a content hash of the raw query string — deliberately not
// case- or whitespace-normalized, so "What is X?" and "what is x?" are
// distinct entries. Expired entries are evicted lazily on Get and eagerly
// by a background sweep; there is no size bound (acceptable for the
// in-memory scope of this system, flagged for production hardening).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTTL is the entry lifetime used when the caller does not choose one.
const DefaultTTL = time.Hour

type entry struct {
	result    string
	createdAt time.Time
}

// ResultCache maps query hashes to previously computed answers.
// Safe for concurrent use. Call Close to stop the background sweep.
type ResultCache struct {
	ttl time.Duration
	now func() time.Time // stubbed in tests

	mu      sync.Mutex
	entries map[string]entry

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a cache whose entries live for ttl. A non-positive ttl falls
// back to DefaultTTL.
func New(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ResultCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the cached answer for query, if a live entry exists.
// An expired entry is removed and reported as a miss.
func (c *ResultCache) Get(query string) (string, bool) {
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.result, true
}

// Put stores an answer for query with the cache's configured TTL.
func (c *ResultCache) Put(query, result string) {
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{result: result, createdAt: c.now()}
}

// Len returns the number of entries, expired ones included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Key derives the cache key for a query: hex SHA-256 of the raw string.
// Collisions are accepted as cryptographically negligible.
func Key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// sweep eagerly evicts expired entries every minute so an idle cache does
// not hold dead answers until the next Get.
func (c *ResultCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *ResultCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}
