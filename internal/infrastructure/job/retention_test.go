package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/infrastructure/db/redis"
)

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) PurgeExpired(_ context.Context, _ time.Time) (int, error) {
	p.calls++
	return 1, p.err
}

type fakeLocker struct {
	held bool
	keys []string
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.held {
		return redis.ErrLockHeld
	}
	return fn(ctx)
}

func TestRetentionPurger_RunOnce(t *testing.T) {
	purger := &countingPurger{}
	locker := &fakeLocker{}
	job := NewRetentionPurger(purger, locker, time.Hour, zerolog.Nop())

	job.RunOnce(context.Background())

	if purger.calls != 1 {
		t.Errorf("expected one purge, got %d", purger.calls)
	}
	if len(locker.keys) != 1 || locker.keys[0] != retentionLockKey {
		t.Errorf("expected purge under %q, got %v", retentionLockKey, locker.keys)
	}
}

func TestRetentionPurger_SkipsWhenLockHeld(t *testing.T) {
	purger := &countingPurger{}
	job := NewRetentionPurger(purger, &fakeLocker{held: true}, time.Hour, zerolog.Nop())

	job.RunOnce(context.Background())

	if purger.calls != 0 {
		t.Errorf("expected no purge while another instance holds the lock, got %d", purger.calls)
	}
}

func TestRetentionPurger_ErrorDoesNotPanic(t *testing.T) {
	purger := &countingPurger{err: errors.New("mongo down")}
	job := NewRetentionPurger(purger, &fakeLocker{}, time.Hour, zerolog.Nop())

	job.RunOnce(context.Background())

	if purger.calls != 1 {
		t.Errorf("expected purge attempt, got %d", purger.calls)
	}
}

func TestRetentionPurger_RunStopsOnCancel(t *testing.T) {
	purger := &countingPurger{}
	job := NewRetentionPurger(purger, &fakeLocker{}, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if purger.calls < 2 {
		t.Errorf("expected startup purge plus ticks, got %d", purger.calls)
	}
}
