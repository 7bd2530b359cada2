package cache

import (
	"context"
	"fmt"
	"time"
)

// Locker implements short-lived mutual-exclusion flags used to serialize
// per-user synchronization jobs. The TTL bounds how long a crashed holder
// can keep the flag; callers must still Release in a defer on the normal
// path.
type Locker struct {
	c *Cache
}

// NewLocker returns a Locker sharing the cache's Redis client.
func NewLocker(c *Cache) *Locker {
	return &Locker{c: c}
}

func lockKey(operation, userID string) string {
	return fmt.Sprintf("lock:%s:%s", operation, userID)
}

// Acquire attempts to take the lock for (operation, userID). It returns true
// when this caller now holds the lock, false when another holder already has
// it. The lock expires after ttl regardless of release.
func (l *Locker) Acquire(ctx context.Context, operation, userID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, err := l.c.rdb.SetNX(ctx, lockKey(operation, userID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock. Releasing an expired or never-acquired lock is a
// no-op.
func (l *Locker) Release(ctx context.Context, operation, userID string) error {
	if err := l.c.rdb.Del(ctx, lockKey(operation, userID)).Err(); err != nil {
		return fmt.Errorf("lock release: %w", err)
	}
	return nil
}
