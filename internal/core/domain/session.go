package domain

import (
	"strings"
	"time"
)

// SessionStatus represents the lifecycle state of a counting session.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "OPEN"
	SessionClosing   SessionStatus = "CLOSING"
	SessionFinalized SessionStatus = "FINALIZED"
)

// SessionMode distinguishes personal sessions from shared ones.
type SessionMode string

const (
	ModeIndividual  SessionMode = "INDIVIDUAL"
	ModeMultiplayer SessionMode = "MULTIPLAYER"
)

// validTransitions defines the lifecycle state machine. FINALIZED is terminal.
var validTransitions = map[SessionStatus][]SessionStatus{
	SessionOpen:    {SessionClosing, SessionFinalized},
	SessionClosing: {SessionFinalized},
}

// CanTransitionTo reports whether a transition from the current status to next is valid.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsWrites reports whether movements may be recorded in this status.
func (s SessionStatus) AcceptsWrites() bool {
	return s == SessionOpen
}

func (m SessionMode) Valid() bool {
	return m == ModeIndividual || m == ModeMultiplayer
}

// Access codes avoid visually confusable characters (0/O, 1/I).
const (
	AccessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	AccessCodeLength   = 6
)

// NormalizeAccessCode canonicalises user-typed codes.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Session is a bounded counting event with one host and one or more participants.
type Session struct {
	ID                string        `json:"id" bson:"_id"`
	AccessCode        string        `json:"access_code" bson:"access_code"`
	Name              string        `json:"name" bson:"name"`
	HostID            string        `json:"host_id" bson:"host_id"`
	CompanyID         string        `json:"company_id,omitempty" bson:"company_id,omitempty"`
	Mode              SessionMode   `json:"mode" bson:"mode"`
	Status            SessionStatus `json:"status" bson:"status"`
	InflightWrites    int64         `json:"-" bson:"inflight_writes"`
	CountingStarted   bool          `json:"counting_started" bson:"counting_started"`
	CatalogEditing    bool          `json:"-" bson:"catalog_editing"`
	CreatedAt         time.Time     `json:"created_at" bson:"created_at"`
	ClosingAt         *time.Time    `json:"closing_at,omitempty" bson:"closing_at,omitempty"`
	FinalizedAt       *time.Time    `json:"finalized_at,omitempty" bson:"finalized_at,omitempty"`
	ReportID          string        `json:"report_id,omitempty" bson:"report_id,omitempty"`
	MovementsPurgedAt *time.Time    `json:"movements_purged_at,omitempty" bson:"movements_purged_at,omitempty"`
}

// IsHost reports whether userID owns the session.
func (s *Session) IsHost(userID string) bool {
	return userID != "" && s.HostID == userID
}
