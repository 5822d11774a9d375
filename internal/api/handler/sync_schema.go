package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

type movementRequest struct {
	ClientID  string          `json:"client_id"`
	Barcode   string          `json:"barcode"`
	Quantity  decimal.Decimal `json:"quantity"`
	Location  string          `json:"location"`
	Timestamp time.Time       `json:"timestamp"`
}

// recordMovementsRequest is one batch from a participant's sync queue.
// Per-movement rules are checked by the sync service so the error names the index.
type recordMovementsRequest struct {
	ParticipantID string            `json:"participant_id" validate:"required"`
	Movements     []movementRequest `json:"movements"      validate:"required"`
}

type recordMovementsResponse struct {
	AcceptedCount      int              `json:"accepted_count"`
	ConfirmedClientIDs []string         `json:"confirmed_client_ids"`
	Aggregates         []domain.Balance `json:"aggregates"`
}

type aggregatesResponse struct {
	SessionID     string               `json:"session_id"`
	SessionStatus domain.SessionStatus `json:"session_status"`
	Aggregates    []domain.Balance     `json:"aggregates"`
}

type participantSyncResponse struct {
	ParticipantID string                   `json:"participant_id"`
	DisplayName   string                   `json:"display_name"`
	Status        domain.ParticipantStatus `json:"status"`
	LastSyncAt    *time.Time               `json:"last_sync_at,omitempty"`
}

type syncStatusResponse struct {
	Participants  []participantSyncResponse `json:"participants"`
	WindowSeconds int                       `json:"window_seconds"`
	SafeToClose   bool                      `json:"safe_to_close"`
}

type resetResponse struct {
	Deleted int64 `json:"deleted"`
}

func toRecordInput(sessionID string, r recordMovementsRequest) ports.RecordMovementsInput {
	in := ports.RecordMovementsInput{
		SessionID:     sessionID,
		ParticipantID: r.ParticipantID,
		Movements:     make([]ports.MovementInput, 0, len(r.Movements)),
	}
	for _, m := range r.Movements {
		in.Movements = append(in.Movements, ports.MovementInput{
			ClientID:  strings.TrimSpace(m.ClientID),
			Barcode:   m.Barcode,
			Quantity:  m.Quantity,
			Location:  domain.LocationTag(strings.ToUpper(strings.TrimSpace(m.Location))),
			Timestamp: m.Timestamp,
		})
	}
	return in
}

func toSyncStatusResponse(r *ports.PendingSyncResult) syncStatusResponse {
	resp := syncStatusResponse{
		Participants:  make([]participantSyncResponse, 0, len(r.Participants)),
		WindowSeconds: int(r.Window.Seconds()),
		SafeToClose:   r.SafeToClose,
	}
	for _, p := range r.Participants {
		resp.Participants = append(resp.Participants, participantSyncResponse{
			ParticipantID: p.ParticipantID,
			DisplayName:   p.DisplayName,
			Status:        p.Status,
			LastSyncAt:    p.LastSyncAt,
		})
	}
	return resp
}

// nonNil keeps empty aggregate lists rendered as [] rather than null.
func nonNil(b []domain.Balance) []domain.Balance {
	if b == nil {
		return []domain.Balance{}
	}
	return b
}
