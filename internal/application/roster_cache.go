package application

import (
	"context"
	"sync"
	"time"
)

// CachedRosterResolver keeps resolved rosters for a short time so status
// recomputation after every response does not hit the directory each time.
type CachedRosterResolver struct {
	inner      RosterResolver
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]rosterCacheEntry
}

type rosterCacheEntry struct {
	members   []string
	expiresAt time.Time
}

// NewCachedRosterResolver wraps inner with a TTL cache. Non-positive ttl and
// maxEntries fall back to five minutes and 128 entries.
func NewCachedRosterResolver(inner RosterResolver, ttl time.Duration, maxEntries int, now func() time.Time) *CachedRosterResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &CachedRosterResolver{
		inner:      inner,
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]rosterCacheEntry),
	}
}

// ResolveRoster returns the cached roster or resolves and stores it. Errors
// are not cached.
func (c *CachedRosterResolver) ResolveRoster(ctx context.Context, guildID, roleID string) ([]string, error) {
	key := rosterCacheKey(guildID, roleID)
	if members, ok := c.get(key); ok {
		return members, nil
	}
	members, err := c.inner.ResolveRoster(ctx, guildID, roleID)
	if err != nil {
		return nil, err
	}
	c.store(key, members)
	return cloneMembers(members), nil
}

// Invalidate drops the cached roster for one role.
func (c *CachedRosterResolver) Invalidate(guildID, roleID string) {
	c.mu.Lock()
	delete(c.entries, rosterCacheKey(guildID, roleID))
	c.mu.Unlock()
}

func (c *CachedRosterResolver) get(key string) ([]string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneMembers(entry.members), true
}

func (c *CachedRosterResolver) store(key string, members []string) {
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = rosterCacheEntry{members: cloneMembers(members), expiresAt: expiry}
}

func (c *CachedRosterResolver) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *CachedRosterResolver) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneMembers(members []string) []string {
	if members == nil {
		return nil
	}
	out := make([]string, len(members))
	copy(out, members)
	return out
}

func rosterCacheKey(guildID, roleID string) string {
	return guildID + "|" + roleID
}
