package retrieval

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ziadkadry99/twinpilot/internal/knowledge"
)

// GroundingCache answers "does this twin have any grounding material at
// all?" without hitting the store on every turn. Entries expire after a
// short TTL; a stale positive or negative for up to the TTL is an accepted,
// bounded inconsistency. The cache is constructed once and injected, never
// reached through package globals.
type GroundingCache struct {
	store knowledge.Store
	lru   *expirable.LRU[string, bool]
}

// NewGroundingCache creates a cache over the given store with a bounded size
// and per-entry TTL.
func NewGroundingCache(store knowledge.Store, size int, ttl time.Duration) *GroundingCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &GroundingCache{
		store: store,
		lru:   expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

// HasGrounding reports whether the persona scope has any material worth
// retrieving against. Store errors are treated as "assume yes" so that a
// transient failure never silently disables retrieval.
func (c *GroundingCache) HasGrounding(ctx context.Context, scope string) bool {
	if v, ok := c.lru.Get(scope); ok {
		return v
	}
	has, err := c.store.HasMaterial(ctx, scope)
	if err != nil {
		return true
	}
	c.lru.Add(scope, has)
	return has
}
