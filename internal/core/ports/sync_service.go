package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// MovementInput is a single client-generated movement in a sync batch.
type MovementInput struct {
	ClientID  string
	Barcode   string
	Quantity  decimal.Decimal
	Location  domain.LocationTag
	Timestamp time.Time
}

// RecordMovementsInput is one batch pushed by a participant's sync queue.
type RecordMovementsInput struct {
	SessionID     string
	ParticipantID string
	Movements     []MovementInput
}

// RecordResult reports what the ledger did with a batch.
type RecordResult struct {
	// AcceptedCount is the number of movements newly stored by this call.
	AcceptedCount int
	// ConfirmedClientIDs lists every client id of the batch that is now durable,
	// including ones stored by an earlier attempt.
	ConfirmedClientIDs []string
	Aggregates         []domain.Balance
}

// ParticipantSync is one row of the pending-sync check.
type ParticipantSync struct {
	ParticipantID string
	DisplayName   string
	Status        domain.ParticipantStatus
	LastSyncAt    *time.Time
}

// PendingSyncResult is a best-effort hint for the host before closing.
type PendingSyncResult struct {
	Participants []ParticipantSync
	Window       time.Duration
	SafeToClose  bool
}

// CatalogEntryInput is one catalog line supplied by the host.
type CatalogEntryInput struct {
	ProductCode   string
	Barcode       *string
	Description   string
	SystemBalance decimal.Decimal
}

// SyncService covers the ledger, aggregation reads and catalog management.
type SyncService interface {
	RecordMovements(ctx context.Context, input RecordMovementsInput) (*RecordResult, error)
	Aggregates(ctx context.Context, sessionID, participantID string) ([]domain.Balance, error)
	HostAggregates(ctx context.Context, sessionID, hostID string) (*domain.Session, []domain.Balance, error)
	PendingSync(ctx context.Context, sessionID, hostID string) (*PendingSyncResult, error)

	Catalog(ctx context.Context, sessionID, hostID string) ([]domain.CatalogEntry, error)
	ReplaceCatalog(ctx context.Context, sessionID, hostID string, entries []CatalogEntryInput) error
	ClearCatalog(ctx context.Context, sessionID, hostID string) error

	ResetMovements(ctx context.Context, sessionID string) (int64, error)
}
