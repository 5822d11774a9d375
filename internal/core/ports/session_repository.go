package ports

import (
	"context"
	"time"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// SessionRepository persists sessions and performs the conditional updates the
// lifecycle relies on. Conditional methods report whether a document matched.
type SessionRepository interface {
	// Create inserts a session. Returns domain.ErrDuplicateAccessCode on an access code collision.
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	FindByAccessCode(ctx context.Context, code string) (*domain.Session, error)
	// FindOpenPersonal returns the host's OPEN INDIVIDUAL session, or domain.ErrSessionNotFound.
	FindOpenPersonal(ctx context.Context, hostID string) (*domain.Session, error)
	ListByHost(ctx context.Context, hostID string) ([]*domain.Session, error)
	CountOpenByHost(ctx context.Context, hostID string) (int64, error)
	CountCreatedSince(ctx context.Context, hostID string, since time.Time) (int64, error)

	// AcquireWrite increments the in-flight writer count only while the session
	// is OPEN and no catalog edit holds it, and marks counting as started.
	AcquireWrite(ctx context.Context, id string) (bool, error)
	ReleaseWrite(ctx context.Context, id string) error
	InflightWrites(ctx context.Context, id string) (int64, error)

	// AcquireCatalogEdit takes an exclusive catalog lease, counted as an
	// in-flight write, only while the session is OPEN and counting has not started.
	AcquireCatalogEdit(ctx context.Context, id string) (bool, error)
	ReleaseCatalogEdit(ctx context.Context, id string) error
	// ResetCounting clears the counting-started mark when no writer holds a lease.
	ResetCounting(ctx context.Context, id string) (bool, error)

	// Transition moves the session from one status to another only if it is
	// currently in `from`, stamping the matching timestamp field.
	Transition(ctx context.Context, id string, from, to domain.SessionStatus, at time.Time) (bool, error)
	SetReportID(ctx context.Context, id, reportID string) error

	// ListPurgeable returns FINALIZED sessions finalized before `before` whose ledger is still present.
	ListPurgeable(ctx context.Context, before time.Time, limit int) ([]*domain.Session, error)
	MarkMovementsPurged(ctx context.Context, id string, at time.Time) error
}

// ParticipantRepository persists session participants.
type ParticipantRepository interface {
	// Create returns domain.ErrDuplicateParticipant when the display name is taken in the session.
	Create(ctx context.Context, p *domain.Participant) error
	FindByID(ctx context.Context, id string) (*domain.Participant, error)
	FindByName(ctx context.Context, sessionID, displayName string) (*domain.Participant, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Participant, error)
	CountActive(ctx context.Context, sessionID string) (int64, error)
	SetStatus(ctx context.Context, id string, status domain.ParticipantStatus) error
	TouchSync(ctx context.Context, id string, at time.Time) error
}
