package replay

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"
)

// Cache remembers token identities until they expire.
type Cache interface {
	// Add records key until expires. It returns false if key is already
	// recorded and not yet expired.
	Add(ctx context.Context, key string, expires time.Time) (bool, error)
}

// Key hashes parts into a cache key. Parts are length-prefixed so that
// different splits of the same bytes give different keys.
func Key(kind string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, p := range parts {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process Cache. Expired entries are purged
// periodically until Close is called.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache returns a cache purging expired entries every
// cleanupInterval. A zero interval disables the purge loop.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanupExpired(cleanupInterval)
	}
	return c
}

// Add implements Cache.
func (c *MemoryCache) Add(_ context.Context, key string, expires time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if until, exists := c.entries[key]; exists && c.now().Before(until) {
		return false, nil
	}
	c.entries[key] = expires
	return true, nil
}

// Contains reports whether key is recorded and not expired.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	until, exists := c.entries[key]
	return exists && c.now().Before(until)
}

// Len returns the number of recorded entries, expired ones included until
// the next purge.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge removes expired entries.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, until := range c.entries {
		if !now.Before(until) {
			delete(c.entries, key)
		}
	}
}

// Close stops the purge loop.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stop:
			return
		}
	}
}
