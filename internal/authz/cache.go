package authz

import (
	"sync"
	"time"
)

// grantCache is an in-process TTL cache of resolved grants, keyed by
// tenant and user. Stale entries are dropped lazily on read and swept
// periodically so revoked users stop hitting the database.
type grantCache struct {
	mu      sync.RWMutex
	entries map[string]grantEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type grantEntry struct {
	grant     *Grant
	expiresAt time.Time
}

func newGrantCache(ttl time.Duration) *grantCache {
	c := &grantCache{
		entries: make(map[string]grantEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// close stops the sweeper. Safe to call more than once.
func (c *grantCache) close() {
	c.once.Do(func() { close(c.done) })
}

func grantKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}

func (c *grantCache) get(tenantID, userID string) (*Grant, bool) {
	c.mu.RLock()
	entry, ok := c.entries[grantKey(tenantID, userID)]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.grant, true
}

func (c *grantCache) set(tenantID, userID string, grant *Grant) {
	c.mu.Lock()
	c.entries[grantKey(tenantID, userID)] = grantEntry{
		grant:     grant,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// invalidate drops the cached grant for one user in one tenant.
func (c *grantCache) invalidate(tenantID, userID string) {
	c.mu.Lock()
	delete(c.entries, grantKey(tenantID, userID))
	c.mu.Unlock()
}

// invalidateTenant drops every cached grant for a tenant. Used when a role's
// permission set changes, which affects all holders.
func (c *grantCache) invalidateTenant(tenantID string) {
	prefix := tenantID + ":"
	c.mu.Lock()
	for key := range c.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// invalidateAll drops every cached grant.
func (c *grantCache) invalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]grantEntry)
	c.mu.Unlock()
}

func (c *grantCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
