package ports

import (
	"context"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// CreateSessionInput carries the data needed to open a new session.
type CreateSessionInput struct {
	HostID    string
	CompanyID string
	Name      string
	Mode      domain.SessionMode
}

// JoinResult is returned when a participant joins or rejoins a session.
type JoinResult struct {
	Session     *domain.Session
	Participant *domain.Participant
	// Rejoined is true when an existing participant row was reused.
	Rejoined bool
}

// SessionService defines the lifecycle use cases that do not involve counting.
type SessionService interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*domain.Session, error)
	EnsurePersonalSession(ctx context.Context, hostID, displayName string) (*JoinResult, error)
	JoinSession(ctx context.Context, accessCode, participantName string) (*JoinResult, error)
	LeaveSession(ctx context.Context, sessionID, participantID string) error
	GetSession(ctx context.Context, sessionID, hostID string) (*domain.Session, error)
	ListHostSessions(ctx context.Context, hostID string) ([]*domain.Session, error)
}
