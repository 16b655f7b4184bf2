package redis

import (
	"context"
	"strconv"

	"github.com/kopilka-hub/kopilka/internal/domain/level"
	"github.com/kopilka-hub/kopilka/internal/domain/shared"
)

// LevelCache implements level.Cache using the generic Redis Cache.
// A miss surfaces as shared.ErrLevelNotFound so callers fall through to
// the Postgres record the same way they do for a missing row.
type LevelCache struct {
	cache *Cache
}

// NewLevelCache creates a new LevelCache.
func NewLevelCache(cache *Cache) *LevelCache {
	return &LevelCache{cache: cache}
}

// Get returns the cached tier for a user.
func (c *LevelCache) Get(ctx context.Context, userID shared.UserID) (level.Tier, error) {
	val, err := c.cache.GetString(ctx, LevelKey(userID.String()))
	if err != nil {
		if err == ErrCacheMiss {
			return level.TierBronze, shared.ErrLevelNotFound
		}
		return level.TierBronze, err
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		// Corrupt entry: treat as a miss, the caller will rewrite it.
		return level.TierBronze, shared.ErrLevelNotFound
	}

	return level.TierFromInt(n), nil
}

// Set stores the tier for a user.
func (c *LevelCache) Set(ctx context.Context, userID shared.UserID, tier level.Tier) error {
	return c.cache.SetString(ctx, LevelKey(userID.String()), strconv.Itoa(tier.Int()), TTLLevelCache)
}

// Delete invalidates the cached tier for a user.
func (c *LevelCache) Delete(ctx context.Context, userID shared.UserID) error {
	return c.cache.Delete(ctx, LevelKey(userID.String()))
}
