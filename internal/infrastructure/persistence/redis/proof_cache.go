package redis

import (
	"context"

	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// ProofSeenCache implements proof.DedupCache using the generic Redis Cache.
// Entries expire after TTLProofSeen; an expired entry is a false miss,
// which the verifier resolves against the Postgres registry.
type ProofSeenCache struct {
	cache *Cache
}

// NewProofSeenCache creates a new ProofSeenCache.
func NewProofSeenCache(cache *Cache) *ProofSeenCache {
	return &ProofSeenCache{cache: cache}
}

// Seen reports whether the proof id was marked before.
func (c *ProofSeenCache) Seen(ctx context.Context, id shared.ProofID) (bool, error) {
	return c.cache.Exists(ctx, ProofSeenKey(id.String()))
}

// Mark records the proof id as seen.
func (c *ProofSeenCache) Mark(ctx context.Context, id shared.ProofID) error {
	return c.cache.SetString(ctx, ProofSeenKey(id.String()), "1", TTLProofSeen)
}
