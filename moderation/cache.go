package moderation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/hupe1980/ragmesh/core"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 24 // 16MB of cached query text
	defaultBufferItems = 64
	defaultTTL         = 10 * time.Minute
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

// Cache wraps a Moderator and remembers successful verdicts for TTL. Errors
// are never cached so a transient outage does not pin a fail-open result.
type Cache struct {
	next   core.Moderator
	cache  *ristretto.Cache
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// NewCache creates a Cache in front of next.
func NewCache(next core.Moderator, optFns ...func(o *CacheOptions)) (*Cache, error) {
	opts := CacheOptions{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
		TTL:         defaultTTL,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: opts.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{next: next, cache: cache, ttl: opts.TTL}, nil
}

// Moderate implements core.Moderator.
func (c *Cache) Moderate(ctx context.Context, text string) (core.ModerationResult, error) {
	key := strings.TrimSpace(text)

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if !closed {
		if v, ok := c.cache.Get(key); ok {
			if res, ok := v.(core.ModerationResult); ok {
				return res, nil
			}
		}
	}

	res, err := c.next.Moderate(ctx, text)
	if err != nil {
		return core.ModerationResult{}, err
	}
	if !closed {
		c.cache.SetWithTTL(key, res, int64(len(key))+1, c.ttl)
	}
	return res, nil
}

// Wait blocks until pending cache writes are applied.
func (c *Cache) Wait() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		c.cache.Wait()
	}
}

// Close releases the cache. Subsequent calls pass straight through.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cache.Close()
}
