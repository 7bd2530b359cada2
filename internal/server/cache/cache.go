// Package cache provides the Redis-backed collection cache and the sync lock
// manager. A cache entry holds the full serialized snapshot of one user's
// collection; absence of an entry is always a valid state and triggers a
// rebuild from the relational store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is applied when a service does not configure its own.
const DefaultTTL = 300 * time.Second

// Cache stores per-user collection snapshots with a TTL.
type Cache struct {
	rdb *redis.Client
}

// New returns a Cache over the given Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func collectionKey(collection, userID string) string {
	return fmt.Sprintf("%s:%s", collection, userID)
}

// GetCollection returns the cached snapshot for the user's collection.
// Presence is reported explicitly: an empty payload with present=true is a
// legitimately empty collection, not a miss.
func (c *Cache) GetCollection(ctx context.Context, collection, userID string) ([]byte, bool, error) {
	payload, err := c.rdb.Get(ctx, collectionKey(collection, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return payload, true, nil
}

// SetCollection stores the snapshot under the collection key with the given
// TTL. A non-positive TTL falls back to DefaultTTL.
func (c *Cache) SetCollection(ctx context.Context, collection, userID string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.rdb.Set(ctx, collectionKey(collection, userID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes the user's snapshot for the collection. Removing an
// absent key is not an error.
func (c *Cache) Invalidate(ctx context.Context, collection, userID string) error {
	if err := c.rdb.Del(ctx, collectionKey(collection, userID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
