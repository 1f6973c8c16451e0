// Package clientcache keeps a bounded, TTL-expiring cache of gateway
// clients keyed by owner. Building a client is cheap but token rotation
// must take effect promptly, so entries are keyed by the token itself and
// expire on their own.
package clientcache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/threadflow/go-post-scheduler/internal/gateway"
)

// Cache hands out one gateway client per (owner, token) pair.
type Cache struct {
	store   *ristretto.Cache
	factory gateway.Factory
	ttl     time.Duration
}

// New builds a cache holding at most size clients, each living for ttl.
func New(factory gateway.Factory, size int, ttl time.Duration) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, factory: factory, ttl: ttl}, nil
}

// Get returns the cached client for the owner's current token, building
// and caching one on miss. A rotated token is a different key, so stale
// clients fall out naturally.
func (c *Cache) Get(userID, accessToken string) gateway.Client {
	key := userID + "\x00" + accessToken
	if v, ok := c.store.Get(key); ok {
		if client, ok := v.(gateway.Client); ok {
			return client
		}
	}
	client := c.factory(accessToken)
	c.store.SetWithTTL(key, client, 1, c.ttl)
	return client
}

// Wait flushes pending cache writes. Tests use it to make Get read-after-
// write deterministic.
func (c *Cache) Wait() { c.store.Wait() }

// Close releases the cache's internal resources.
func (c *Cache) Close() { c.store.Close() }
