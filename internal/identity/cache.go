package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ownershipEntry holds a cached controller decision.
type ownershipEntry struct {
	allowed   bool
	expiresAt time.Time
}

func (e *ownershipEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// CachedOwnershipChecker wraps another OwnershipChecker with a TTL cache.
// Controller relations change far less often than validations open, so a
// repeat lookup for the same requester/subject pair skips the registry
// round trip. Allow and deny decisions are both cached; lookup errors
// never are.
type CachedOwnershipChecker struct {
	inner  OwnershipChecker
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*ownershipEntry
	ttl     time.Duration
}

// NewCachedOwnershipChecker wraps inner with a cache holding decisions for ttl.
func NewCachedOwnershipChecker(inner OwnershipChecker, ttl time.Duration, logger *zap.Logger) *CachedOwnershipChecker {
	return &CachedOwnershipChecker{
		inner:   inner,
		logger:  logger,
		entries: make(map[string]*ownershipEntry),
		ttl:     ttl,
	}
}

// IsController answers from the cache when it can, and falls through to
// the wrapped checker on a miss.
func (c *CachedOwnershipChecker) IsController(ctx context.Context, requester, subject string) (bool, error) {
	key := ownershipKey(requester, subject)

	if allowed, ok := c.get(key); ok {
		c.logger.Debug("identity: controller cache hit",
			zap.String("subject", subject),
			zap.String("requester", requester),
		)
		return allowed, nil
	}

	allowed, err := c.inner.IsController(ctx, requester, subject)
	if err != nil {
		return false, err
	}

	c.set(key, allowed)
	return allowed, nil
}

// Invalidate drops the cached decision for one requester/subject pair.
func (c *CachedOwnershipChecker) Invalidate(requester, subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownershipKey(requester, subject))
}

// Len returns the number of cached decisions (including expired).
func (c *CachedOwnershipChecker) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartEviction starts a background goroutine that periodically drops
// expired decisions. Cancel ctx to stop it.
func (c *CachedOwnershipChecker) StartEviction(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n := c.evict()
				if n > 0 {
					c.logger.Debug("identity: ownership cache eviction", zap.Int("evicted", n))
				}
			}
		}
	}()
}

// get looks up a live cached decision.
func (c *CachedOwnershipChecker) get(key string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.expired() {
		return false, false
	}
	return e.allowed, true
}

// set stores a decision in the cache.
func (c *CachedOwnershipChecker) set(key string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &ownershipEntry{
		allowed:   allowed,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// evict removes all expired decisions.
func (c *CachedOwnershipChecker) evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.expired() {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// ownershipKey joins a requester/subject pair with a NUL so the two parts
// cannot collide.
func ownershipKey(requester, subject string) string {
	return requester + "\x00" + subject
}
