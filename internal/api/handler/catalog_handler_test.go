package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

func TestCatalogHandler_Replace(t *testing.T) {
	var stored []domain.CatalogEntry
	stub := &stubSyncService{
		replaceFn: func(ctx context.Context, sessionID, hostID string, entries []ports.CatalogEntryInput) error {
			if hostID != "host-1" {
				t.Fatalf("unexpected host %s", hostID)
			}
			for _, e := range entries {
				stored = append(stored, domain.CatalogEntry{
					SessionID: sessionID, ProductCode: e.ProductCode, Barcode: e.Barcode,
					Description: e.Description, SystemBalance: e.SystemBalance,
				})
			}
			return nil
		},
		catalogFn: func(ctx context.Context, sessionID, hostID string) ([]domain.CatalogEntry, error) {
			return stored, nil
		},
	}

	body := `{"entries":[{"product_code":"P-123","barcode":"123","description":"Widget","system_balance":"4"}]}`
	c, rec := newTestContext(http.MethodPut, "/v1/sessions/s1/catalog", body, &testHost)
	setParams(c, "id", "s1")
	if err := NewCatalogHandler(stub).Replace(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(stored) != 1 || !stored[0].SystemBalance.Equal(decimal.NewFromInt(4)) || *stored[0].Barcode != "123" {
		t.Fatalf("unexpected stored catalog: %+v", stored)
	}
	entries, _ := decodeBody(t, rec)["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected catalog echoed back")
	}
}

func TestCatalogHandler_Replace_Validation(t *testing.T) {
	c, _ := newTestContext(http.MethodPut, "/v1/sessions/s1/catalog", `{"entries":[{"description":"no code"}]}`, &testHost)
	setParams(c, "id", "s1")
	expectKind(t, NewCatalogHandler(&stubSyncService{}).Replace(c), domain.ErrValidation)
}

func TestCatalogHandler_Replace_Locked(t *testing.T) {
	stub := &stubSyncService{
		replaceFn: func(ctx context.Context, sessionID, hostID string, entries []ports.CatalogEntryInput) error {
			return domain.ErrCatalogLocked
		},
	}
	c, _ := newTestContext(http.MethodPut, "/v1/sessions/s1/catalog", `{"entries":[]}`, &testHost)
	setParams(c, "id", "s1")
	expectKind(t, NewCatalogHandler(stub).Replace(c), domain.ErrConflict)
}

func TestCatalogHandler_GetAndClear(t *testing.T) {
	cleared := false
	stub := &stubSyncService{
		catalogFn: func(ctx context.Context, sessionID, hostID string) ([]domain.CatalogEntry, error) {
			return nil, nil
		},
		clearFn: func(ctx context.Context, sessionID, hostID string) error {
			cleared = true
			return nil
		},
	}
	h := NewCatalogHandler(stub)

	c, rec := newTestContext(http.MethodGet, "/v1/sessions/s1/catalog", "", &testHost)
	setParams(c, "id", "s1")
	if err := h.Get(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	if entries, ok := decodeBody(t, rec)["entries"].([]any); !ok || len(entries) != 0 {
		t.Fatalf("expected empty entries list")
	}

	c, rec = newTestContext(http.MethodDelete, "/v1/sessions/s1/catalog", "", &testHost)
	setParams(c, "id", "s1")
	if err := h.Clear(c); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if rec.Code != http.StatusNoContent || !cleared {
		t.Fatalf("catalog not cleared")
	}
}
