package job

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/infrastructure/db/redis"
)

const retentionLockKey = "retention-purge"

// Purger deletes expired ledgers. Implemented by service.RetentionService.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Locker runs fn only while holding key. Implemented by redis.Locker.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// RetentionPurger runs the retention purge on a fixed interval. Every API
// instance runs one; the Redis lock makes sure only one purges per tick.
type RetentionPurger struct {
	purger   Purger
	locker   Locker
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewRetentionPurger(purger Purger, locker Locker, interval time.Duration, log zerolog.Logger) *RetentionPurger {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionPurger{
		purger:   purger,
		locker:   locker,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled. It purges once at startup, then on every tick.
func (p *RetentionPurger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single locked purge pass. Failures are logged; the next tick retries.
func (p *RetentionPurger) RunOnce(ctx context.Context) {
	err := p.locker.WithLock(ctx, retentionLockKey, p.interval, func(ctx context.Context) error {
		n, err := p.purger.PurgeExpired(ctx, p.now())
		if err != nil {
			return err
		}
		if n > 0 {
			p.log.Info().Int("sessions", n).Msg("retention purge completed")
		}
		return nil
	})
	switch {
	case errors.Is(err, redis.ErrLockHeld):
		p.log.Debug().Msg("retention purge running on another instance")
	case err != nil && ctx.Err() == nil:
		p.log.Error().Err(err).Msg("retention purge failed")
	}
}
