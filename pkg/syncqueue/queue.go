package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/aggregate"
	"github.com/conteo/inventory-sync/internal/core/domain"
)

const (
	defaultBatchSize    = 100
	defaultFlushTimeout = 15 * time.Second
	defaultInterval     = 5 * time.Second
)

// Config identifies the participant a queue pushes for and tunes its loop.
type Config struct {
	SessionID     string
	ParticipantID string
	// BatchSize must not exceed the server's SYNC_MAX_BATCH.
	BatchSize    int
	FlushTimeout time.Duration
	Interval     time.Duration
	// OnReadOnly is called once, when the server reports the session closed.
	OnReadOnly func()
	Log        zerolog.Logger
}

// FlushResult describes one Flush call.
type FlushResult struct {
	// Skipped is true when another flush was already running.
	Skipped   bool
	Sent      int
	Accepted  int
	Remaining int
}

// Queue records scans locally and pushes them to the server.
// At most one flush runs at a time; polling is skipped while a flush is in
// progress, and a poll that overlapped a flush discards its result.
type Queue struct {
	cfg       Config
	store     Store
	transport Transport

	flushing atomic.Bool
	readOnly atomic.Bool

	mu        sync.RWMutex
	confirmed []domain.Balance
	// gen counts flushes; a poll only stores totals read in the same generation.
	gen uint64

	newID func() string
	now   func() time.Time
}

func New(store Store, transport Transport, cfg Config) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Queue{
		cfg:       cfg,
		store:     store,
		transport: transport,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// ReadOnly reports whether the session has closed under this queue.
func (q *Queue) ReadOnly() bool {
	return q.readOnly.Load()
}

// Enqueue persists a scan and returns it with its idempotency key. The scan
// is durable in the store before Enqueue returns.
func (q *Queue) Enqueue(ctx context.Context, barcode string, qty decimal.Decimal, loc domain.LocationTag) (Movement, error) {
	if q.readOnly.Load() {
		return Movement{}, ErrReadOnly
	}
	barcode = strings.TrimSpace(barcode)
	switch {
	case barcode == "":
		return Movement{}, errors.New("syncqueue: barcode is required")
	case qty.IsZero():
		return Movement{}, errors.New("syncqueue: quantity must not be zero")
	case !loc.Valid():
		return Movement{}, fmt.Errorf("syncqueue: invalid location %q", loc)
	}

	m := Movement{
		ClientID:  q.newID(),
		Barcode:   barcode,
		Quantity:  qty,
		Location:  string(loc),
		Timestamp: q.now().UTC(),
	}
	if err := q.store.Append(ctx, m); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Flush pushes queued movements in batches until the store is empty or a
// batch fails. Only confirmed client ids are removed; on network errors,
// server errors and rejections the entries stay queued for the next attempt.
func (q *Queue) Flush(ctx context.Context) (FlushResult, error) {
	if q.readOnly.Load() {
		return FlushResult{}, ErrReadOnly
	}
	if !q.flushing.CompareAndSwap(false, true) {
		return FlushResult{Skipped: true}, nil
	}
	defer q.flushing.Store(false)
	q.bumpGeneration()

	flushCtx, cancel := context.WithTimeout(ctx, q.cfg.FlushTimeout)
	defer cancel()

	var res FlushResult
	err := q.flush(flushCtx, &res)
	if n, lenErr := q.store.Len(ctx); lenErr == nil {
		res.Remaining = n
	}
	return res, err
}

func (q *Queue) flush(ctx context.Context, res *FlushResult) error {
	for {
		batch, err := q.store.Pending(ctx, q.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		out, err := q.transport.Push(ctx, q.cfg.SessionID, q.cfg.ParticipantID, batch)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				q.enterReadOnly()
			}
			return err
		}

		if err := q.store.Remove(ctx, out.ConfirmedClientIDs); err != nil {
			return err
		}
		res.Sent += len(out.ConfirmedClientIDs)
		res.Accepted += out.AcceptedCount
		q.setConfirmed(out.Aggregates)

		if len(batch) < q.cfg.BatchSize || len(out.ConfirmedClientIDs) == 0 {
			return nil
		}
	}
}

// Poll refreshes the server totals. It does nothing while a flush is running.
func (q *Queue) Poll(ctx context.Context) error {
	if q.readOnly.Load() {
		return ErrReadOnly
	}
	if q.flushing.Load() {
		return nil
	}
	gen := q.generation()

	balances, err := q.transport.Aggregates(ctx, q.cfg.SessionID, q.cfg.ParticipantID)
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			q.enterReadOnly()
		}
		return err
	}
	if !q.setPolled(gen, balances) {
		q.cfg.Log.Debug().Msg("poll overlapped a flush, totals discarded")
	}
	return nil
}

// Run flushes then polls on every tick until ctx is done or the session closes.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.cfg.Interval)
	defer ticker.Stop()

	for {
		if done := q.tick(ctx); done {
			return ErrSessionClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) tick(ctx context.Context) bool {
	res, err := q.Flush(ctx)
	switch {
	case q.readOnly.Load():
		return true
	case err != nil:
		q.cfg.Log.Warn().Err(err).Int("pending", res.Remaining).Msg("flush failed, will retry")
	case res.Sent > 0:
		q.cfg.Log.Debug().Int("sent", res.Sent).Int("accepted", res.Accepted).Int("pending", res.Remaining).Msg("flushed")
	}

	if err := q.Poll(ctx); err != nil {
		if q.readOnly.Load() {
			return true
		}
		q.cfg.Log.Warn().Err(err).Msg("poll failed")
	}
	return false
}

// View returns the last confirmed server totals with local unconfirmed
// movements added on top.
func (q *Queue) View(ctx context.Context) ([]domain.Balance, error) {
	pending, err := q.store.Pending(ctx, 0)
	if err != nil {
		return nil, err
	}
	local := make([]domain.Movement, 0, len(pending))
	for _, m := range pending {
		local = append(local, m.toDomain())
	}

	q.mu.RLock()
	base := append([]domain.Balance(nil), q.confirmed...)
	q.mu.RUnlock()

	return aggregate.Merge(base, aggregate.Compute(local)), nil
}

func (q *Queue) setConfirmed(b []domain.Balance) {
	q.mu.Lock()
	q.confirmed = b
	q.gen++
	q.mu.Unlock()
}

// setPolled stores poll totals unless a flush started or confirmed totals
// since gen was read.
func (q *Queue) setPolled(gen uint64, b []domain.Balance) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gen != gen || q.flushing.Load() {
		return false
	}
	q.confirmed = b
	return true
}

func (q *Queue) generation() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.gen
}

func (q *Queue) bumpGeneration() {
	q.mu.Lock()
	q.gen++
	q.mu.Unlock()
}

func (q *Queue) enterReadOnly() {
	if !q.readOnly.CompareAndSwap(false, true) {
		return
	}
	q.cfg.Log.Info().Str("session_id", q.cfg.SessionID).Msg("session closed, queue is now read-only")
	if q.cfg.OnReadOnly != nil {
		q.cfg.OnReadOnly()
	}
}
