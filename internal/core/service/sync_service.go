package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/api/metrics"
	"github.com/conteo/inventory-sync/internal/core/aggregate"
	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

// AggregateCache abstracts the short-lived aggregate cache (Redis).
type AggregateCache interface {
	Get(ctx context.Context, sessionID string) ([]domain.Balance, bool, error)
	Set(ctx context.Context, sessionID string, balances []domain.Balance) error
	Invalidate(ctx context.Context, sessionID string) error
}

// SyncPolicy bounds batch sizes and the pending-sync heuristic.
type SyncPolicy struct {
	MaxBatch          int
	PendingSyncWindow time.Duration
}

func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{MaxBatch: 500, PendingSyncWindow: 30 * time.Second}
}

type SyncService struct {
	sessions     ports.SessionRepository
	participants ports.ParticipantRepository
	movements    ports.MovementRepository
	catalog      ports.CatalogRepository
	cache        AggregateCache
	policy       SyncPolicy
	log          zerolog.Logger
	now          func() time.Time
}

func NewSyncService(
	sessions ports.SessionRepository,
	participants ports.ParticipantRepository,
	movements ports.MovementRepository,
	catalog ports.CatalogRepository,
	cache AggregateCache,
	policy SyncPolicy,
	log zerolog.Logger,
) *SyncService {
	if policy.MaxBatch <= 0 {
		policy.MaxBatch = 500
	}
	if policy.PendingSyncWindow <= 0 {
		policy.PendingSyncWindow = 30 * time.Second
	}
	return &SyncService{
		sessions:     sessions,
		participants: participants,
		movements:    movements,
		catalog:      catalog,
		cache:        cache,
		policy:       policy,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RecordMovements appends a participant's batch to the ledger.
//
// The write gate is a lease on the session document: it can only be taken
// while the session is OPEN, and finalization waits for outstanding leases
// after closing the gate. Retried movements are deduplicated by client id.
func (s *SyncService) RecordMovements(ctx context.Context, in ports.RecordMovementsInput) (*ports.RecordResult, error) {
	if err := s.validateBatch(in); err != nil {
		return nil, err
	}

	participant, err := s.participants.FindByID(ctx, in.ParticipantID)
	if err != nil {
		return nil, err
	}
	if participant.SessionID != in.SessionID {
		return nil, domain.ErrParticipantNotFound
	}

	// 1. Take the write lease; fails once the session left OPEN.
	acquired, err := s.sessions.AcquireWrite(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("record movements: acquire: %w", err)
	}
	if !acquired {
		session, err := s.sessions.FindByID(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		if session.Status.AcceptsWrites() && session.CatalogEditing {
			metrics.MovementsRejectedTotal.WithLabelValues("catalog_editing").Inc()
			return nil, domain.ErrCatalogUpdating
		}
		metrics.MovementsRejectedTotal.WithLabelValues("session_closed").Inc()
		return nil, domain.ErrSessionClosed
	}

	// 2. Append; duplicates of earlier attempts are skipped by the unique index.
	now := s.now()
	batch := make([]domain.Movement, len(in.Movements))
	ids := make([]string, len(in.Movements))
	for i, m := range in.Movements {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = now
		}
		batch[i] = domain.Movement{
			ClientID:      m.ClientID,
			SessionID:     in.SessionID,
			ParticipantID: in.ParticipantID,
			Barcode:       strings.TrimSpace(m.Barcode),
			Quantity:      m.Quantity,
			Location:      m.Location,
			Timestamp:     ts.UTC(),
			ReceivedAt:    now,
		}
		ids[i] = m.ClientID
	}

	inserted, err := s.movements.InsertBatch(ctx, batch)
	// The lease covers the ledger write only. Release even if the request was
	// cancelled, or finalization cannot complete.
	if relErr := s.sessions.ReleaseWrite(context.WithoutCancel(ctx), in.SessionID); relErr != nil {
		s.log.Error().Err(relErr).Str("session_id", in.SessionID).Msg("failed to release write lease")
	}
	if err != nil {
		return nil, fmt.Errorf("record movements: insert: %w", err)
	}
	metrics.MovementsAcceptedTotal.Add(float64(inserted))
	metrics.MovementsDuplicateTotal.Add(float64(len(batch) - inserted))
	metrics.SyncBatchSize.Observe(float64(len(batch)))

	// 3. Bookkeeping; failures here do not undo the ledger write.
	if err := s.participants.TouchSync(ctx, in.ParticipantID, now); err != nil {
		s.log.Warn().Err(err).Str("participant_id", in.ParticipantID).Msg("failed to record last sync")
	}
	if inserted > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, in.SessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", in.SessionID).Msg("failed to invalidate aggregate cache")
		}
	}

	balances, err := s.compute(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("session_id", in.SessionID).
		Str("participant_id", in.ParticipantID).
		Int("batch", len(batch)).
		Int("accepted", inserted).
		Msg("movements recorded")

	return &ports.RecordResult{
		AcceptedCount:      inserted,
		ConfirmedClientIDs: ids,
		Aggregates:         balances,
	}, nil
}

func (s *SyncService) validateBatch(in ports.RecordMovementsInput) error {
	if in.ParticipantID == "" {
		return domain.NewValidationError("participant_id is required")
	}
	if len(in.Movements) == 0 {
		return domain.NewValidationError("batch cannot be empty")
	}
	if len(in.Movements) > s.policy.MaxBatch {
		return domain.NewValidationError(fmt.Sprintf("batch exceeds %d movements", s.policy.MaxBatch))
	}
	seen := make(map[string]struct{}, len(in.Movements))
	for i, m := range in.Movements {
		switch {
		case m.ClientID == "":
			return domain.NewValidationError(fmt.Sprintf("movement[%d]: client_id is required", i))
		case strings.TrimSpace(m.Barcode) == "":
			return domain.NewValidationError(fmt.Sprintf("movement[%d]: barcode is required", i))
		case m.Quantity.IsZero():
			return domain.NewValidationError(fmt.Sprintf("movement[%d]: quantity must not be zero", i))
		case !m.Location.Valid():
			return domain.NewValidationError(fmt.Sprintf("movement[%d]: location must be STORE or WAREHOUSE", i))
		}
		if _, dup := seen[m.ClientID]; dup {
			return domain.NewValidationError(fmt.Sprintf("movement[%d]: duplicate client_id in batch", i))
		}
		seen[m.ClientID] = struct{}{}
	}
	return nil
}

// Aggregates is the participant-facing read. It fails with ErrSessionClosed
// once the session stops accepting writes, which tells pollers to stop.
func (s *SyncService) Aggregates(ctx context.Context, sessionID, participantID string) ([]domain.Balance, error) {
	participant, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.SessionID != sessionID {
		return nil, domain.ErrParticipantNotFound
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.AcceptsWrites() {
		return nil, domain.ErrSessionClosed
	}
	return s.cachedCompute(ctx, sessionID)
}

// HostAggregates lets the host read balances in any lifecycle state.
func (s *SyncService) HostAggregates(ctx context.Context, sessionID, hostID string) (*domain.Session, []domain.Balance, error) {
	session, err := hostSession(ctx, s.sessions, sessionID, hostID)
	if err != nil {
		return nil, nil, err
	}
	balances, err := s.cachedCompute(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, balances, nil
}

func (s *SyncService) cachedCompute(ctx context.Context, sessionID string) ([]domain.Balance, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, sessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("aggregate cache read failed")
		} else if ok {
			metrics.AggregateCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.AggregateCacheTotal.WithLabelValues("miss").Inc()
	}

	balances, err := s.compute(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, sessionID, balances); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("aggregate cache write failed")
		}
	}
	return balances, nil
}

func (s *SyncService) compute(ctx context.Context, sessionID string) ([]domain.Balance, error) {
	movements, err := s.movements.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return aggregate.Compute(movements), nil
}

// PendingSync reports when each participant last synced. SafeToClose is a
// heuristic: nobody pushed a batch within the trailing window.
func (s *SyncService) PendingSync(ctx context.Context, sessionID, hostID string) (*ports.PendingSyncResult, error) {
	if _, err := hostSession(ctx, s.sessions, sessionID, hostID); err != nil {
		return nil, err
	}

	participants, err := s.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("pending sync: %w", err)
	}

	cutoff := s.now().Add(-s.policy.PendingSyncWindow)
	result := &ports.PendingSyncResult{
		Participants: make([]ports.ParticipantSync, 0, len(participants)),
		Window:       s.policy.PendingSyncWindow,
		SafeToClose:  true,
	}
	for _, p := range participants {
		result.Participants = append(result.Participants, ports.ParticipantSync{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Status:        p.Status,
			LastSyncAt:    p.LastSyncAt,
		})
		if p.LastSyncAt != nil && p.LastSyncAt.After(cutoff) {
			result.SafeToClose = false
		}
	}
	return result, nil
}

// Catalog returns the session's catalog snapshot.
func (s *SyncService) Catalog(ctx context.Context, sessionID, hostID string) ([]domain.CatalogEntry, error) {
	if _, err := hostSession(ctx, s.sessions, sessionID, hostID); err != nil {
		return nil, err
	}
	return s.catalog.ListBySession(ctx, sessionID)
}

// ReplaceCatalog swaps the session catalog. The first movement batch freezes
// the catalog, since the final report is reconciled against it.
func (s *SyncService) ReplaceCatalog(ctx context.Context, sessionID, hostID string, entries []ports.CatalogEntryInput) error {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.CatalogEntry, 0, len(entries))
	for i, e := range entries {
		code := strings.TrimSpace(e.ProductCode)
		if code == "" {
			return domain.NewValidationError(fmt.Sprintf("entry[%d]: product_code is required", i))
		}
		if _, dup := seen[code]; dup {
			return domain.NewValidationError(fmt.Sprintf("entry[%d]: duplicate product_code %q", i, code))
		}
		seen[code] = struct{}{}

		var barcode *string
		if e.Barcode != nil && strings.TrimSpace(*e.Barcode) != "" {
			b := strings.TrimSpace(*e.Barcode)
			barcode = &b
		}
		out = append(out, domain.CatalogEntry{
			SessionID:     sessionID,
			ProductCode:   code,
			Barcode:       barcode,
			Description:   strings.TrimSpace(e.Description),
			SystemBalance: e.SystemBalance,
		})
	}

	release, err := s.lockCatalog(ctx, sessionID, hostID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.catalog.Replace(ctx, sessionID, out); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	s.log.Info().Str("session_id", sessionID).Int("entries", len(out)).Msg("catalog replaced")
	return nil
}

// ClearCatalog removes the session catalog under the same rule as ReplaceCatalog.
func (s *SyncService) ClearCatalog(ctx context.Context, sessionID, hostID string) error {
	release, err := s.lockCatalog(ctx, sessionID, hostID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.catalog.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	s.log.Info().Str("session_id", sessionID).Msg("catalog cleared")
	return nil
}

// lockCatalog takes the catalog lease. Movement batches are refused while it
// is held and finalization waits for it like any other writer.
func (s *SyncService) lockCatalog(ctx context.Context, sessionID, hostID string) (func(), error) {
	session, err := hostSession(ctx, s.sessions, sessionID, hostID)
	if err != nil {
		return nil, err
	}
	if !session.Status.AcceptsWrites() {
		return nil, domain.ErrSessionClosed
	}

	ok, err := s.sessions.AcquireCatalogEdit(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: acquire: %w", err)
	}
	if !ok {
		session, err := s.sessions.FindByID(ctx, sessionID)
		switch {
		case err != nil:
			return nil, err
		case !session.Status.AcceptsWrites():
			return nil, domain.ErrSessionClosed
		case session.CountingStarted:
			return nil, domain.ErrCatalogLocked
		default:
			return nil, domain.ErrCatalogEditing
		}
	}

	return func() {
		if err := s.sessions.ReleaseCatalogEdit(context.WithoutCancel(ctx), sessionID); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to release catalog lease")
		}
	}, nil
}

// ResetMovements purges a session's ledger. Admin only; enforced by the router.
func (s *SyncService) ResetMovements(ctx context.Context, sessionID string) (int64, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return 0, err
	}
	n, err := s.movements.DeleteBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("reset movements: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to invalidate aggregate cache")
		}
	}
	// With the ledger empty the catalog may be edited again, unless a batch is
	// being written right now.
	unlocked, err := s.sessions.ResetCounting(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to unlock catalog")
	}
	s.log.Warn().
		Str("session_id", sessionID).
		Int64("deleted", n).
		Bool("catalog_unlocked", unlocked).
		Msg("session ledger reset")
	return n, nil
}
