package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/api/metrics"
	"github.com/conteo/inventory-sync/internal/core/aggregate"
	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
	"github.com/conteo/inventory-sync/internal/core/reconcile"
)

// FinalizePolicy controls how long finalization waits for in-flight writes.
type FinalizePolicy struct {
	DrainTimeout time.Duration
	DrainPoll    time.Duration
}

func DefaultFinalizePolicy() FinalizePolicy {
	return FinalizePolicy{DrainTimeout: 15 * time.Second, DrainPoll: 50 * time.Millisecond}
}

type ReportService struct {
	sessions  ports.SessionRepository
	movements ports.MovementRepository
	catalog   ports.CatalogRepository
	reports   ports.ReportRepository
	events    ports.EventDispatcher
	policy    FinalizePolicy
	log       zerolog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)
}

func NewReportService(
	sessions ports.SessionRepository,
	movements ports.MovementRepository,
	catalog ports.CatalogRepository,
	reports ports.ReportRepository,
	events ports.EventDispatcher,
	policy FinalizePolicy,
	log zerolog.Logger,
) *ReportService {
	if policy.DrainPoll <= 0 {
		policy.DrainPoll = 50 * time.Millisecond
	}
	return &ReportService{
		sessions:  sessions,
		movements: movements,
		catalog:   catalog,
		reports:   reports,
		events:    events,
		policy:    policy,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepCtx,
	}
}

// FinalizeSession closes the session and writes its reconciliation report.
//
// Order matters: the write gate is closed (OPEN -> CLOSING) and drained
// before the ledger is read, so the report sees every accepted movement.
// Exactly one caller wins the OPEN -> CLOSING update; all others get
// ErrAlreadyFinalized. When writers are still in flight after the drain
// timeout the session stays CLOSING and ErrDrainPending is returned;
// RegenerateReport completes it once the writers are gone.
func (s *ReportService) FinalizeSession(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error) {
	session, err := hostSession(ctx, s.sessions, sessionID, hostID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionOpen {
		return nil, domain.ErrAlreadyFinalized
	}

	// 1. Close the gate.
	closed, err := s.sessions.Transition(ctx, sessionID, domain.SessionOpen, domain.SessionClosing, s.now())
	if err != nil {
		return nil, fmt.Errorf("finalize: close gate: %w", err)
	}
	if !closed {
		return nil, domain.ErrAlreadyFinalized
	}

	// 2. Wait for writers that passed the gate before it closed.
	if err := s.drain(ctx, sessionID); err != nil {
		return nil, err
	}

	// 3. Commit the terminal state before computing anything.
	finalizedAt := s.now()
	ok, err := s.sessions.Transition(ctx, sessionID, domain.SessionClosing, domain.SessionFinalized, finalizedAt)
	if err != nil {
		return nil, fmt.Errorf("finalize: commit: %w", err)
	}
	if !ok {
		return nil, domain.ErrAlreadyFinalized
	}
	session.Status = domain.SessionFinalized
	session.FinalizedAt = &finalizedAt
	metrics.SessionsFinalizedTotal.Inc()

	// 4. Build the report from the now-frozen ledger.
	report, err := s.storeReport(ctx, session)
	if err != nil {
		metrics.ReportFailuresTotal.Inc()
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("session finalized without report")
		return nil, fmt.Errorf("%w: %v", domain.ErrReportMissing, err)
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("report_id", report.ID).
		Int("rows", report.RowCount).
		Msg("session finalized")
	s.publish(session, report)
	return report, nil
}

// RegenerateReport rebuilds the report of a FINALIZED session whose report
// was never stored, and completes sessions left in CLOSING by a crashed
// finalizer. An existing report is returned unchanged.
func (s *ReportService) RegenerateReport(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error) {
	session, err := hostSession(ctx, s.sessions, sessionID, hostID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case domain.SessionOpen:
		return nil, domain.NewValidationError("session is still open")
	case domain.SessionClosing:
		if session.ClosingAt != nil && s.now().Sub(*session.ClosingAt) < s.policy.DrainTimeout {
			return nil, &domain.Error{Kind: domain.ErrConflict, Message: "session is being finalized"}
		}
		n, err := s.sessions.InflightWrites(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("regenerate report: %w", err)
		}
		if n > 0 {
			return nil, domain.ErrDrainPending
		}
		at := s.now()
		ok, err := s.sessions.Transition(ctx, sessionID, domain.SessionClosing, domain.SessionFinalized, at)
		if err != nil {
			return nil, fmt.Errorf("regenerate report: commit: %w", err)
		}
		if ok {
			session.Status = domain.SessionFinalized
			session.FinalizedAt = &at
			metrics.SessionsFinalizedTotal.Inc()
			s.log.Warn().Str("session_id", sessionID).Msg("completed stale CLOSING session")
		} else if session, err = s.sessions.FindByID(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	existing, err := s.reports.FindBySession(ctx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrReportNotFound) {
		return nil, fmt.Errorf("regenerate report: %w", err)
	}
	if session.MovementsPurgedAt != nil {
		return nil, domain.ErrLedgerPurged
	}

	report, err := s.storeReport(ctx, session)
	if err != nil {
		metrics.ReportFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrReportMissing, err)
	}
	s.log.Info().Str("session_id", sessionID).Str("report_id", report.ID).Msg("report regenerated")
	return report, nil
}

// drain waits until no writer holds a lease on the session. It returns
// ErrDrainPending when writers remain after the drain timeout.
func (s *ReportService) drain(ctx context.Context, sessionID string) error {
	deadline := s.now().Add(s.policy.DrainTimeout)
	for {
		n, err := s.sessions.InflightWrites(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("finalize: drain: %w", err)
		}
		if n <= 0 {
			return nil
		}
		if !s.now().Before(deadline) || ctx.Err() != nil {
			metrics.FinalizeDrainTimeoutsTotal.Inc()
			s.log.Warn().
				Str("session_id", sessionID).
				Int64("inflight", n).
				Dur("timeout", s.policy.DrainTimeout).
				Msg("writes still in flight, session left CLOSING")
			return domain.ErrDrainPending
		}
		s.sleep(ctx, s.policy.DrainPoll)
	}
}

// storeReport builds and persists the report for a FINALIZED session. A
// concurrent writer that stored one first wins; its report is returned.
func (s *ReportService) storeReport(ctx context.Context, session *domain.Session) (*domain.SavedReport, error) {
	start := time.Now()

	catalog, err := s.catalog.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	movements, err := s.movements.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	rows := reconcile.Build(catalog, aggregate.Compute(movements))
	content, err := reconcile.EncodeCSV(rows)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	createdAt := s.now()
	if session.FinalizedAt != nil {
		createdAt = *session.FinalizedAt
	}
	report := &domain.SavedReport{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		OwnerID:   session.HostID,
		Filename:  reconcile.Filename(session, createdAt),
		Content:   content,
		RowCount:  len(rows),
		CreatedAt: createdAt,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		if errors.Is(err, domain.ErrReportExists) {
			return s.reports.FindBySession(ctx, session.ID)
		}
		return nil, fmt.Errorf("save report: %w", err)
	}
	metrics.ReportBuildDuration.Observe(time.Since(start).Seconds())

	sum := reconcile.Summarize(rows)
	s.log.Debug().
		Str("session_id", session.ID).
		Int("rows", sum.Rows).
		Int("discrepancies", sum.Discrepancies).
		Int("unregistered", sum.Unregistered).
		Msg("report stored")

	if err := s.sessions.SetReportID(ctx, session.ID, report.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to link report to session")
	} else {
		session.ReportID = report.ID
	}
	return report, nil
}

func (s *ReportService) ListReports(ctx context.Context, ownerID string) ([]*domain.SavedReport, error) {
	if ownerID == "" {
		return nil, domain.ErrMissingIdentity
	}
	return s.reports.ListByOwner(ctx, ownerID)
}

// GetReport returns a report only to its owner. Other callers see NotFound.
func (s *ReportService) GetReport(ctx context.Context, reportID, ownerID string) (*domain.SavedReport, error) {
	if ownerID == "" {
		return nil, domain.ErrMissingIdentity
	}
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.OwnerID != ownerID {
		return nil, domain.ErrReportNotFound
	}
	return report, nil
}

// ExportXLSX renders a stored CSV report as a spreadsheet.
func (s *ReportService) ExportXLSX(ctx context.Context, reportID, ownerID string) (string, []byte, error) {
	report, err := s.GetReport(ctx, reportID, ownerID)
	if err != nil {
		return "", nil, err
	}
	records, err := reconcile.DecodeCSV(report.Content)
	if err != nil {
		return "", nil, fmt.Errorf("export xlsx: %w", err)
	}
	content, err := reconcile.EncodeXLSX(records)
	if err != nil {
		return "", nil, fmt.Errorf("export xlsx: %w", err)
	}
	return strings.TrimSuffix(report.Filename, ".csv") + ".xlsx", content, nil
}

func (s *ReportService) publish(session *domain.Session, report *domain.SavedReport) {
	if s.events == nil {
		return
	}
	s.events.Enqueue(domain.SessionEvent{
		Type:      domain.EventSessionFinalized,
		SessionID: session.ID,
		HostID:    session.HostID,
		At:        s.now(),
		Attrs: map[string]string{
			"report_id": report.ID,
			"rows":      fmt.Sprint(report.RowCount),
		},
	})
}
