package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/api/metrics"
	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

// SessionPolicy bounds how hosts and participants may use sessions.
type SessionPolicy struct {
	MaxOpenPerHost   int
	MaxDailyPerHost  int
	MaxParticipants  int
	CodeAttempts     int
	InvalidCodeDelay time.Duration
	QuotaWindow      time.Duration
}

// DefaultSessionPolicy mirrors the configuration defaults.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		MaxOpenPerHost:   5,
		MaxDailyPerHost:  20,
		MaxParticipants:  25,
		CodeAttempts:     10,
		InvalidCodeDelay: 750 * time.Millisecond,
		QuotaWindow:      24 * time.Hour,
	}
}

type SessionService struct {
	sessions     ports.SessionRepository
	participants ports.ParticipantRepository
	events       ports.EventDispatcher
	policy       SessionPolicy
	logger       zerolog.Logger
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration)
}

func NewSessionService(
	sessions ports.SessionRepository,
	participants ports.ParticipantRepository,
	events ports.EventDispatcher,
	policy SessionPolicy,
	logger zerolog.Logger,
) *SessionService {
	if policy.CodeAttempts <= 0 {
		policy.CodeAttempts = 10
	}
	if policy.QuotaWindow <= 0 {
		policy.QuotaWindow = 24 * time.Hour
	}
	return &SessionService{
		sessions:     sessions,
		participants: participants,
		events:       events,
		policy:       policy,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        sleepCtx,
	}
}

// CreateSession opens a new session for the host after enforcing quotas.
func (s *SessionService) CreateSession(ctx context.Context, in ports.CreateSessionInput) (*domain.Session, error) {
	if in.HostID == "" {
		return nil, domain.ErrMissingIdentity
	}
	if in.Mode == "" {
		in.Mode = domain.ModeMultiplayer
	}
	if !in.Mode.Valid() {
		return nil, domain.NewValidationError("mode must be INDIVIDUAL or MULTIPLAYER")
	}

	if err := s.checkQuota(ctx, in.HostID); err != nil {
		return nil, err
	}

	session, err := s.insertWithCode(ctx, &domain.Session{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		HostID:    in.HostID,
		CompanyID: in.CompanyID,
		Mode:      in.Mode,
		Status:    domain.SessionOpen,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	metrics.SessionsCreatedTotal.WithLabelValues(string(session.Mode)).Inc()
	s.logger.Info().
		Str("session_id", session.ID).
		Str("host_id", session.HostID).
		Str("mode", string(session.Mode)).
		Msg("session created")
	s.publish(domain.EventSessionCreated, session, nil)
	return session, nil
}

func (s *SessionService) checkQuota(ctx context.Context, hostID string) error {
	if s.policy.MaxOpenPerHost > 0 {
		open, err := s.sessions.CountOpenByHost(ctx, hostID)
		if err != nil {
			return fmt.Errorf("create session: count open: %w", err)
		}
		if open >= int64(s.policy.MaxOpenPerHost) {
			return domain.ErrQuotaExceeded
		}
	}
	if s.policy.MaxDailyPerHost > 0 {
		recent, err := s.sessions.CountCreatedSince(ctx, hostID, s.now().Add(-s.policy.QuotaWindow))
		if err != nil {
			return fmt.Errorf("create session: count recent: %w", err)
		}
		if recent >= int64(s.policy.MaxDailyPerHost) {
			return domain.ErrQuotaExceeded
		}
	}
	return nil
}

// insertWithCode assigns a fresh access code, retrying on collisions.
func (s *SessionService) insertWithCode(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	for attempt := 1; attempt <= s.policy.CodeAttempts; attempt++ {
		code, err := generateAccessCode()
		if err != nil {
			return nil, fmt.Errorf("create session: access code: %w", err)
		}
		session.AccessCode = code

		err = s.sessions.Create(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrDuplicateAccessCode) {
			return nil, fmt.Errorf("create session: %w", err)
		}
		s.logger.Debug().Int("attempt", attempt).Msg("access code collision, retrying")
	}
	return nil, fmt.Errorf("create session: no free access code after %d attempts", s.policy.CodeAttempts)
}

// EnsurePersonalSession returns the host's own INDIVIDUAL session, creating it
// and the host's participant row on first use. Personal sessions skip quotas.
func (s *SessionService) EnsurePersonalSession(ctx context.Context, hostID, displayName string) (*ports.JoinResult, error) {
	if hostID == "" {
		return nil, domain.ErrMissingIdentity
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = hostID
	}

	session, err := s.sessions.FindOpenPersonal(ctx, hostID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("personal session: %w", err)
	}
	if session == nil {
		session, err = s.insertWithCode(ctx, &domain.Session{
			ID:        uuid.NewString(),
			Name:      displayName,
			HostID:    hostID,
			Mode:      domain.ModeIndividual,
			Status:    domain.SessionOpen,
			CreatedAt: s.now(),
		})
		if err != nil {
			return nil, err
		}
		metrics.SessionsCreatedTotal.WithLabelValues(string(domain.ModeIndividual)).Inc()
		s.logger.Info().Str("session_id", session.ID).Str("host_id", hostID).Msg("personal session provisioned")
	}

	owner := hostID
	participant, rejoined, err := s.admit(ctx, session, displayName, &owner, false)
	if err != nil {
		return nil, err
	}
	return &ports.JoinResult{Session: session, Participant: participant, Rejoined: rejoined}, nil
}

// JoinSession admits a participant by access code. The display name is the
// participant identity: joining again with the same name returns the same row.
func (s *SessionService) JoinSession(ctx context.Context, accessCode, participantName string) (*ports.JoinResult, error) {
	code := domain.NormalizeAccessCode(accessCode)
	name := strings.TrimSpace(participantName)
	if name == "" {
		return nil, domain.NewValidationError("participant name is required")
	}

	session, err := s.sessions.FindByAccessCode(ctx, code)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("join session: %w", err)
	}
	if session == nil || session.Status != domain.SessionOpen {
		metrics.JoinFailuresTotal.WithLabelValues("invalid_code").Inc()
		s.sleep(ctx, s.policy.InvalidCodeDelay)
		return nil, domain.ErrSessionNotFound
	}

	participant, rejoined, err := s.admit(ctx, session, name, nil, true)
	if err != nil {
		if errors.Is(err, domain.ErrSessionFull) {
			metrics.JoinFailuresTotal.WithLabelValues("full").Inc()
		}
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("participant_id", participant.ID).
		Bool("rejoined", rejoined).
		Msg("participant joined")
	s.publish(domain.EventParticipantJoined, session, map[string]string{
		"participant_id": participant.ID,
		"display_name":   participant.DisplayName,
	})
	return &ports.JoinResult{Session: session, Participant: participant, Rejoined: rejoined}, nil
}

// admit finds or creates the participant row for name. When enforceCap is set,
// only admissions that add an ACTIVE participant count against the cap.
func (s *SessionService) admit(ctx context.Context, session *domain.Session, name string, owner *string, enforceCap bool) (*domain.Participant, bool, error) {
	existing, err := s.participants.FindByName(ctx, session.ID, name)
	if err != nil && !errors.Is(err, domain.ErrParticipantNotFound) {
		return nil, false, fmt.Errorf("admit participant: %w", err)
	}

	if existing != nil && existing.Status == domain.ParticipantActive {
		return existing, true, nil
	}

	if enforceCap && s.policy.MaxParticipants > 0 {
		active, err := s.participants.CountActive(ctx, session.ID)
		if err != nil {
			return nil, false, fmt.Errorf("admit participant: count: %w", err)
		}
		if active >= int64(s.policy.MaxParticipants) {
			return nil, false, domain.ErrSessionFull
		}
	}

	if existing != nil {
		if err := s.participants.SetStatus(ctx, existing.ID, domain.ParticipantActive); err != nil {
			return nil, false, fmt.Errorf("admit participant: reactivate: %w", err)
		}
		existing.Status = domain.ParticipantActive
		return existing, true, nil
	}

	p := &domain.Participant{
		ID:           uuid.NewString(),
		SessionID:    session.ID,
		DisplayName:  name,
		OwningUserID: owner,
		Status:       domain.ParticipantActive,
		JoinedAt:     s.now(),
	}
	if err := s.participants.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicateParticipant) {
			// Lost a race with a concurrent join under the same name.
			winner, findErr := s.participants.FindByName(ctx, session.ID, name)
			if findErr != nil {
				return nil, false, fmt.Errorf("admit participant: %w", findErr)
			}
			return winner, true, nil
		}
		return nil, false, fmt.Errorf("admit participant: %w", err)
	}
	return p, false, nil
}

// LeaveSession marks the participant FINISHED. Their movements stay in the ledger.
func (s *SessionService) LeaveSession(ctx context.Context, sessionID, participantID string) error {
	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		return err
	}
	if p.SessionID != sessionID {
		return domain.ErrParticipantNotFound
	}
	if p.Status == domain.ParticipantFinished {
		return nil
	}
	if err := s.participants.SetStatus(ctx, p.ID, domain.ParticipantFinished); err != nil {
		return fmt.Errorf("leave session: %w", err)
	}
	s.logger.Info().Str("session_id", sessionID).Str("participant_id", participantID).Msg("participant left")
	return nil
}

// GetSession returns a session visible to its host.
func (s *SessionService) GetSession(ctx context.Context, sessionID, hostID string) (*domain.Session, error) {
	return hostSession(ctx, s.sessions, sessionID, hostID)
}

func (s *SessionService) ListHostSessions(ctx context.Context, hostID string) ([]*domain.Session, error) {
	if hostID == "" {
		return nil, domain.ErrMissingIdentity
	}
	return s.sessions.ListByHost(ctx, hostID)
}

func (s *SessionService) publish(t domain.SessionEventType, session *domain.Session, attrs map[string]string) {
	if s.events == nil {
		return
	}
	s.events.Enqueue(domain.SessionEvent{
		Type:      t,
		SessionID: session.ID,
		HostID:    session.HostID,
		At:        s.now(),
		Attrs:     attrs,
	})
}

// hostSession loads a session and checks that hostID owns it.
func hostSession(ctx context.Context, repo ports.SessionRepository, sessionID, hostID string) (*domain.Session, error) {
	if hostID == "" {
		return nil, domain.ErrMissingIdentity
	}
	session, err := repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(hostID) {
		return nil, domain.ErrNotHost
	}
	return session, nil
}

// generateAccessCode draws AccessCodeLength characters from AccessCodeAlphabet.
func generateAccessCode() (string, error) {
	max := big.NewInt(int64(len(domain.AccessCodeAlphabet)))
	b := make([]byte, domain.AccessCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = domain.AccessCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
