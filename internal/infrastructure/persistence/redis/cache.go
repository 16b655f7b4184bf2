// Package redis holds the hot projections of the engine: cached user
// tiers, the proof dedup fast path and the pub/sub mirror of the
// domain event stream. PostgreSQL stays the source of truth; every key
// here is rebuildable and carries a TTL, so the engine runs unchanged
// with Redis disabled.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the Redis connection settings.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password authenticates the connection (empty for no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// PoolSize caps open socket connections.
	PoolSize int

	// MinIdleConns keeps connections warm between bursts.
	MinIdleConns int

	// MaxRetries bounds client-level command retries.
	MaxRetries int

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// ReadTimeout bounds socket reads.
	ReadTimeout time.Duration

	// WriteTimeout bounds socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns settings suitable for a local Redis.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested key does not exist.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when the Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a value cannot be encoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key or channel is given.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS AND TTLs
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes namespace the engine's Redis keys.
const (
	// PrefixLevel prefixes cached user tiers.
	PrefixLevel = "level:"

	// PrefixProofSeen prefixes proof dedup markers.
	PrefixProofSeen = "proofseen:"

	// PrefixPubSub prefixes the mirrored event channels.
	PrefixPubSub = "pubsub:"
)

const (
	// TTLLevelCache bounds cached tiers. Tiers only change on explicit
	// recompute, which invalidates the key anyway.
	TTLLevelCache = 10 * time.Minute

	// TTLProofSeen bounds dedup markers. Long-lived: the Postgres
	// registry backs up any expired entry.
	TTLProofSeen = 24 * time.Hour
)

// LevelKey builds the cache key for a user's tier.
func LevelKey(userID string) string {
	return PrefixLevel + userID
}

// ProofSeenKey builds the dedup key for a proof id (hex form).
func ProofSeenKey(proofID string) string {
	return PrefixProofSeen + proofID
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache wraps the Redis client with the small surface the engine's
// projections need: string get/set with TTL, existence checks, key
// invalidation and channel publishing for the event mirror.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and verifies the connection.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetString stores a string value with the given TTL.
func (c *Cache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// GetString retrieves a string value. A missing key is ErrCacheMiss.
func (c *Cache) GetString(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrCacheKeyEmpty
	}

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

// Delete removes keys. Deleting absent keys is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Exists reports whether the key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}

	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Publish sends a JSON-encoded message to a pub/sub channel. Used by
// the event mirror; subscribers outside the process consume the
// engine's event stream without touching Postgres.
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel == "" {
		return ErrCacheKeyEmpty
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Publish(ctx, channel, data).Err()
}
