// Package cache implements the process-external snapshot cache: a keyed
// Redis store with a TTL and explicit invalidation. The cache is
// advisory — correctness never depends on its availability; callers treat
// any error as a miss and fall through to rebuilding from the durable
// store.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flagwell/flagwell/internal/snapshot"
	"github.com/flagwell/flagwell/internal/telemetry"
)

// TTL is the fixed cache lifetime for a cached snapshot.
const TTL = 300 * time.Second

// Cache wraps a Redis client scoped to snapshot storage.
type Cache struct {
	rdb *redis.Client
}

// New constructs a Cache from a redis:// URL. It returns an error only when
// the URL cannot be parsed; it does not connect, so connection errors
// surface only when an operation is attempted.
func New(redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Cache{rdb: redis.NewClient(opt)}, nil
}

func key(environmentID string) string { return "config:" + environmentID }

// Get returns the cached snapshot for environmentID, or (nil, false) on a
// miss or any Redis error (logged, never returned to the caller as fatal).
func (c *Cache) Get(ctx context.Context, environmentID string) (*snapshot.Config, bool) {
	raw, err := c.rdb.Get(ctx, key(environmentID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[cache] get failed for environment_id=%s: %v", environmentID, err)
		}
		return nil, false
	}
	cfg, err := snapshot.Decode(raw)
	if err != nil {
		log.Printf("[cache] corrupt cached snapshot for environment_id=%s: %v", environmentID, err)
		return nil, false
	}
	return cfg, true
}

// Put stores cfg with the fixed TTL. Errors are logged and swallowed.
func (c *Cache) Put(ctx context.Context, cfg *snapshot.Config) {
	raw, err := cfg.Encode()
	if err != nil {
		log.Printf("[cache] encode failed for environment_id=%s: %v", cfg.EnvironmentID, err)
		return
	}
	if err := c.rdb.Set(ctx, key(cfg.EnvironmentID), raw, TTL).Err(); err != nil {
		log.Printf("[cache] put failed for environment_id=%s: %v", cfg.EnvironmentID, err)
		return
	}
	telemetry.SnapshotFlags.Set(float64(len(cfg.Flags)))
}

// Invalidate deletes the cached entry for environmentID. Errors are
// logged and swallowed — a stale cache entry self-heals at the next TTL
// expiry, and the handler layer also bumps the config version and
// publishes a change event regardless of this call's outcome.
func (c *Cache) Invalidate(ctx context.Context, environmentID string) {
	if err := c.rdb.Del(ctx, key(environmentID)).Err(); err != nil {
		log.Printf("[cache] invalidate failed for environment_id=%s: %v", environmentID, err)
	}
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error { return c.rdb.Close() }
