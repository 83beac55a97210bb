package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/logger"
)

// DefaultCacheTTL is how long a loaded snapshot is served from memory.
const DefaultCacheTTL = 5 * time.Minute

const cacheKey = "snapshot"

// CachedSource serves a loaded snapshot from an in-memory cache until its TTL
// expires.
type CachedSource struct {
	next  Source
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedSource wraps next with a ristretto cache.
func NewCachedSource(next Source, ttl time.Duration) (*CachedSource, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100,
		MaxCost:     16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("NewCachedSource: creating cache: %w", err)
	}
	return &CachedSource{next: next, cache: cache, ttl: ttl}, nil
}

// Load returns the cached snapshot or loads and caches a fresh one.
func (c *CachedSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		if snap, ok := v.(*domain.Snapshot); ok {
			cp := *snap
			return &cp, nil
		}
	}

	snap, err := c.next.Load(ctx)
	if err != nil {
		return nil, err
	}
	if c.cache.SetWithTTL(cacheKey, snap, 1, c.ttl) {
		c.cache.Wait()
	} else {
		log := logger.FromContext(ctx)
		log.Debug().Msg("snapshot cache rejected entry")
	}
	cp := *snap
	return &cp, nil
}

// Invalidate drops the cached snapshot.
func (c *CachedSource) Invalidate() {
	c.cache.Del(cacheKey)
}

// Close releases the cache.
func (c *CachedSource) Close() {
	c.cache.Close()
}
