package domain

import "time"

// SessionEventType names a lifecycle event published to downstream consumers.
type SessionEventType string

const (
	EventSessionCreated    SessionEventType = "session.created"
	EventParticipantJoined SessionEventType = "participant.joined"
	EventSessionFinalized  SessionEventType = "session.finalized"
)

// SessionEvent is emitted after a lifecycle change has been persisted.
type SessionEvent struct {
	Type      SessionEventType  `json:"type"`
	SessionID string            `json:"session_id"`
	HostID    string            `json:"host_id,omitempty"`
	At        time.Time         `json:"at"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}
