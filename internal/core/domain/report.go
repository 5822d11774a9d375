package domain

import "time"

// SavedReport is the immutable reconciliation artifact written at finalization.
type SavedReport struct {
	ID        string    `json:"id" bson:"_id"`
	SessionID string    `json:"session_id" bson:"session_id"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	Filename  string    `json:"filename" bson:"filename"`
	Content   []byte    `json:"-" bson:"content"`
	RowCount  int       `json:"row_count" bson:"row_count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
