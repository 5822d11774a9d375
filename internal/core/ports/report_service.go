package ports

import (
	"context"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// ReportService finalizes sessions and serves the resulting reports.
type ReportService interface {
	FinalizeSession(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error)
	RegenerateReport(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error)
	ListReports(ctx context.Context, ownerID string) ([]*domain.SavedReport, error)
	GetReport(ctx context.Context, reportID, ownerID string) (*domain.SavedReport, error)
	ExportXLSX(ctx context.Context, reportID, ownerID string) (string, []byte, error)
}
