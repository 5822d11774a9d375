package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by WithLock when another instance holds the lock.
var ErrLockHeld = errors.New("lock held by another instance")

// Locker runs work under a cluster-wide Redis lock.
type Locker struct {
	client *redislock.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: redislock.New(client)}
}

// WithLock obtains the named lock for ttl, runs fn and releases the lock.
// It returns ErrLockHeld without running fn when the lock is taken.
func (l *Locker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.client.Obtain(ctx, key("lock", name), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockHeld
	}
	if err != nil {
		return fmt.Errorf("obtain lock %s: %w", name, err)
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()

	return fn(ctx)
}
