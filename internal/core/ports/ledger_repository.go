package ports

import (
	"context"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// MovementRepository is the append-only movement ledger.
type MovementRepository interface {
	// InsertBatch appends movements, silently skipping any whose
	// (session_id, client_id) already exists. Returns the number newly stored.
	InsertBatch(ctx context.Context, movements []domain.Movement) (int, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Movement, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	// DeleteBySession is reserved for admin reset and retention purge.
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

// CatalogRepository stores the session-scoped catalog snapshot.
type CatalogRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.CatalogEntry, error)
	Replace(ctx context.Context, sessionID string, entries []domain.CatalogEntry) error
	Clear(ctx context.Context, sessionID string) error
}

// ReportRepository stores immutable saved reports.
type ReportRepository interface {
	// Create returns domain.ErrReportExists if the session already has a report.
	Create(ctx context.Context, r *domain.SavedReport) error
	FindByID(ctx context.Context, id string) (*domain.SavedReport, error)
	FindBySession(ctx context.Context, sessionID string) (*domain.SavedReport, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.SavedReport, error)
}
