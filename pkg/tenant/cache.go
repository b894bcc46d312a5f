package tenant

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	tenantID  string
	expiresAt time.Time
}

// Cache memoizes brand key to tenant id lookups. Entries expire after ttl;
// a zero ttl keeps entries until Clear.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.expired(entry) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && c.expired(current) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return entry.tenantID, true
}

func (c *Cache) Put(key, tenantID string) {
	entry := cacheEntry{tenantID: tenantID}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(entry cacheEntry) bool {
	return !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt)
}

// Start runs a background sweeper every ttl. It is a no-op without a ttl.
func (c *Cache) Start(ctx context.Context) error {
	if c.ttl <= 0 || c.stop != nil {
		return nil
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop halts the sweeper and drops every entry.
func (c *Cache) Stop(ctx context.Context) error {
	if c.stop != nil {
		close(c.stop)
		select {
		case <-c.done:
		case <-ctx.Done():
		}
		c.stop = nil
	}
	c.Clear()
	return nil
}
