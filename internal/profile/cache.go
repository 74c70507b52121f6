package profile

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	attrs    Attributes
	notFound bool
	expires  time.Time
}

// CachedStore wraps a Store with a read-mostly TTL cache. Only definitive
// results (found or not-found) are cached; transient errors always retry.
type CachedStore struct {
	inner Store
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	now func() time.Time
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *CachedStore) Attributes(ctx context.Context, userID string) (Attributes, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		if entry.notFound {
			return Attributes{}, ErrNotFound
		}
		return entry.attrs, nil
	}

	attrs, err := c.inner.Attributes(ctx, userID)
	switch {
	case err == nil:
		c.put(userID, cacheEntry{attrs: attrs, expires: c.now().Add(c.ttl)})
		return attrs, nil
	case err == ErrNotFound:
		c.put(userID, cacheEntry{notFound: true, expires: c.now().Add(c.ttl)})
		return Attributes{}, ErrNotFound
	default:
		return Attributes{}, err
	}
}

func (c *CachedStore) put(userID string, entry cacheEntry) {
	c.mu.Lock()
	c.entries[userID] = entry
	c.mu.Unlock()
}
