package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/api/middleware"
	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

type stubSessionService struct {
	createFn   func(ctx context.Context, in ports.CreateSessionInput) (*domain.Session, error)
	personalFn func(ctx context.Context, hostID, displayName string) (*ports.JoinResult, error)
	joinFn     func(ctx context.Context, code, name string) (*ports.JoinResult, error)
	leaveFn    func(ctx context.Context, sessionID, participantID string) error
	getFn      func(ctx context.Context, sessionID, hostID string) (*domain.Session, error)
	listFn     func(ctx context.Context, hostID string) ([]*domain.Session, error)
}

func (s *stubSessionService) CreateSession(ctx context.Context, in ports.CreateSessionInput) (*domain.Session, error) {
	return s.createFn(ctx, in)
}

func (s *stubSessionService) EnsurePersonalSession(ctx context.Context, hostID, displayName string) (*ports.JoinResult, error) {
	return s.personalFn(ctx, hostID, displayName)
}

func (s *stubSessionService) JoinSession(ctx context.Context, code, name string) (*ports.JoinResult, error) {
	return s.joinFn(ctx, code, name)
}

func (s *stubSessionService) LeaveSession(ctx context.Context, sessionID, participantID string) error {
	return s.leaveFn(ctx, sessionID, participantID)
}

func (s *stubSessionService) GetSession(ctx context.Context, sessionID, hostID string) (*domain.Session, error) {
	return s.getFn(ctx, sessionID, hostID)
}

func (s *stubSessionService) ListHostSessions(ctx context.Context, hostID string) ([]*domain.Session, error) {
	return s.listFn(ctx, hostID)
}

type stubSyncService struct {
	recordFn         func(ctx context.Context, in ports.RecordMovementsInput) (*ports.RecordResult, error)
	aggregatesFn     func(ctx context.Context, sessionID, participantID string) ([]domain.Balance, error)
	hostAggregatesFn func(ctx context.Context, sessionID, hostID string) (*domain.Session, []domain.Balance, error)
	pendingFn        func(ctx context.Context, sessionID, hostID string) (*ports.PendingSyncResult, error)
	catalogFn        func(ctx context.Context, sessionID, hostID string) ([]domain.CatalogEntry, error)
	replaceFn        func(ctx context.Context, sessionID, hostID string, entries []ports.CatalogEntryInput) error
	clearFn          func(ctx context.Context, sessionID, hostID string) error
	resetFn          func(ctx context.Context, sessionID string) (int64, error)
}

func (s *stubSyncService) RecordMovements(ctx context.Context, in ports.RecordMovementsInput) (*ports.RecordResult, error) {
	return s.recordFn(ctx, in)
}

func (s *stubSyncService) Aggregates(ctx context.Context, sessionID, participantID string) ([]domain.Balance, error) {
	return s.aggregatesFn(ctx, sessionID, participantID)
}

func (s *stubSyncService) HostAggregates(ctx context.Context, sessionID, hostID string) (*domain.Session, []domain.Balance, error) {
	return s.hostAggregatesFn(ctx, sessionID, hostID)
}

func (s *stubSyncService) PendingSync(ctx context.Context, sessionID, hostID string) (*ports.PendingSyncResult, error) {
	return s.pendingFn(ctx, sessionID, hostID)
}

func (s *stubSyncService) Catalog(ctx context.Context, sessionID, hostID string) ([]domain.CatalogEntry, error) {
	return s.catalogFn(ctx, sessionID, hostID)
}

func (s *stubSyncService) ReplaceCatalog(ctx context.Context, sessionID, hostID string, entries []ports.CatalogEntryInput) error {
	return s.replaceFn(ctx, sessionID, hostID, entries)
}

func (s *stubSyncService) ClearCatalog(ctx context.Context, sessionID, hostID string) error {
	return s.clearFn(ctx, sessionID, hostID)
}

func (s *stubSyncService) ResetMovements(ctx context.Context, sessionID string) (int64, error) {
	return s.resetFn(ctx, sessionID)
}

type stubReportService struct {
	finalizeFn   func(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error)
	regenerateFn func(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error)
	listFn       func(ctx context.Context, ownerID string) ([]*domain.SavedReport, error)
	getFn        func(ctx context.Context, reportID, ownerID string) (*domain.SavedReport, error)
	exportFn     func(ctx context.Context, reportID, ownerID string) (string, []byte, error)
}

func (s *stubReportService) FinalizeSession(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error) {
	return s.finalizeFn(ctx, sessionID, hostID)
}

func (s *stubReportService) RegenerateReport(ctx context.Context, sessionID, hostID string) (*domain.SavedReport, error) {
	return s.regenerateFn(ctx, sessionID, hostID)
}

func (s *stubReportService) ListReports(ctx context.Context, ownerID string) ([]*domain.SavedReport, error) {
	return s.listFn(ctx, ownerID)
}

func (s *stubReportService) GetReport(ctx context.Context, reportID, ownerID string) (*domain.SavedReport, error) {
	return s.getFn(ctx, reportID, ownerID)
}

func (s *stubReportService) ExportXLSX(ctx context.Context, reportID, ownerID string) (string, []byte, error) {
	return s.exportFn(ctx, reportID, ownerID)
}

var testHost = domain.Identity{UserID: "host-1", Username: "alice", Role: domain.RoleHost, CompanyID: "acme"}

// newTestContext builds an echo context with the validator installed, an
// optional JSON body and, when id is non-nil, the identity Auth would set.
func newTestContext(method, target, body string, id *domain.Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != nil {
		c.Set(middleware.ContextIdentity, *id)
		c.Set(middleware.ContextRole, id.Role)
	}
	return c, rec
}

func setParams(c echo.Context, kv ...string) {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

