package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cachedAccount struct {
	account   *Identity
	fetchedAt time.Time
}

// accountCache holds provider account records for the revocation check.
// Concurrent lookups for the same uid are deduplicated via singleflight.
// Errors are never cached.
type accountCache struct {
	lookup func(ctx context.Context, uid string) (*Identity, error)
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]*cachedAccount
	sf    singleflight.Group
}

func newAccountCache(lookup func(ctx context.Context, uid string) (*Identity, error), ttl time.Duration) *accountCache {
	return &accountCache{
		lookup: lookup,
		ttl:    ttl,
		cache:  make(map[string]*cachedAccount),
	}
}

func (c *accountCache) fresh(uid string) (*Identity, bool) {
	c.mu.RLock()
	entry, ok := c.cache[uid]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.account, true
	}
	return nil, false
}

// Get returns the cached account for uid, fetching it on miss or expiry.
func (c *accountCache) Get(ctx context.Context, uid string) (*Identity, error) {
	if account, ok := c.fresh(uid); ok {
		revocationCacheLookups.WithLabelValues("hit").Inc()
		return account, nil
	}
	revocationCacheLookups.WithLabelValues("miss").Inc()

	result, err, _ := c.sf.Do(uid, func() (any, error) {
		if account, ok := c.fresh(uid); ok {
			return account, nil
		}

		account, err := c.lookup(ctx, uid)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[uid] = &cachedAccount{account: account, fetchedAt: time.Now()}
		c.mu.Unlock()
		return account, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Identity), nil
}

// Invalidate drops uid so the next Get goes to the provider.
func (c *accountCache) Invalidate(uid string) {
	c.mu.Lock()
	delete(c.cache, uid)
	c.mu.Unlock()
	c.sf.Forget(uid)
}
