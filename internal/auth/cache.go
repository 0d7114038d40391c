package auth

import (
	"sync"
	"time"
)

// Cache holds at most one bearer token. It is safe for concurrent use.
type Cache struct {
	mu    sync.RWMutex
	token *BearerToken
	now   func() time.Time
}

// NewCache returns an empty cache. now defaults to time.Now when nil.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{now: now}
}

// IsValid reports whether a token is cached and has not reached its expiry.
func (c *Cache) IsValid() bool {
	_, ok := c.Current()
	return ok
}

// Current returns the cached token and whether it is still valid. The token
// is returned even when expired so callers can inspect it.
func (c *Cache) Current() (*BearerToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil {
		return nil, false
	}
	return c.token, c.token.ValidAt(c.now())
}

// Replace installs t as the cached token.
func (c *Cache) Replace(t *BearerToken) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}
