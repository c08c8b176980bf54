package service

import (
	"context"
	"sync"
	"time"
)

// RevokedTokenCache is a positive-only cache in front of the blacklist table.
// A miss always falls through to the store.
type RevokedTokenCache interface {
	Contains(ctx context.Context, token string) (bool, error)
	Add(ctx context.Context, token string, ttl time.Duration) error
}

type NoopRevokedTokenCache struct{}

func NewNoopRevokedTokenCache() *NoopRevokedTokenCache { return &NoopRevokedTokenCache{} }

func (NoopRevokedTokenCache) Contains(context.Context, string) (bool, error) { return false, nil }

func (NoopRevokedTokenCache) Add(context.Context, string, time.Duration) error { return nil }

type InMemoryRevokedTokenCache struct {
	mu    sync.RWMutex
	store map[string]time.Time
	now   func() time.Time
}

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{store: make(map[string]time.Time), now: time.Now}
}

func (c *InMemoryRevokedTokenCache) Contains(_ context.Context, token string) (bool, error) {
	key := hashToken(token)
	c.mu.RLock()
	expiresAt, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if c.now().After(expiresAt) {
		c.mu.Lock()
		if exp, still := c.store[key]; still && c.now().After(exp) {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *InMemoryRevokedTokenCache) Add(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[hashToken(token)] = c.now().Add(ttl)
	return nil
}

// Prune drops entries that expired at or before now and reports how many
// were removed. Entries for tokens never presented again only leave the map
// this way.
func (c *InMemoryRevokedTokenCache) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, expiresAt := range c.store {
		if !now.Before(expiresAt) {
			delete(c.store, key)
			removed++
		}
	}
	return removed
}
