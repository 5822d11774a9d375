package domain

import "time"

// ParticipantStatus tracks whether a participant is still counting.
type ParticipantStatus string

const (
	ParticipantActive   ParticipantStatus = "ACTIVE"
	ParticipantFinished ParticipantStatus = "FINISHED"
)

// Participant is a collaborator inside a session. Within a session the
// display name is the identity: rejoining with the same name yields the same row.
type Participant struct {
	ID           string            `json:"id" bson:"_id"`
	SessionID    string            `json:"session_id" bson:"session_id"`
	DisplayName  string            `json:"display_name" bson:"display_name"`
	OwningUserID *string           `json:"owning_user_id,omitempty" bson:"owning_user_id,omitempty"`
	Status       ParticipantStatus `json:"status" bson:"status"`
	JoinedAt     time.Time         `json:"joined_at" bson:"joined_at"`
	LastSyncAt   *time.Time        `json:"last_sync_at,omitempty" bson:"last_sync_at,omitempty"`
}
