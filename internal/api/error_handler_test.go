package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

func renderError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/finalize", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return body.Error
}

func TestHTTPErrorHandler_DomainKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", domain.ErrSessionNotFound, http.StatusNotFound, "session not found"},
		{"forbidden", domain.ErrNotHost, http.StatusForbidden, "only the session host can do this"},
		{"closed", domain.ErrSessionClosed, http.StatusConflict, "session is closed for counting"},
		{"already finalized", domain.ErrAlreadyFinalized, http.StatusBadRequest, "session already finalized"},
		{"validation", domain.NewValidationError("barcode is required"), http.StatusBadRequest, "barcode is required"},
		{"full", domain.ErrSessionFull, http.StatusTooManyRequests, "session is full"},
		{"unauthorized", domain.ErrMissingIdentity, http.StatusUnauthorized, "missing user identity"},
		{"wrapped", fmt.Errorf("record: %w", domain.ErrCatalogLocked), http.StatusConflict, "catalog cannot change once counting has started"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := renderError(t, tt.err)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if got := decodeError(t, rec); got != tt.msg {
				t.Fatalf("expected %q, got %q", tt.msg, got)
			}
		})
	}
}

func TestHTTPErrorHandler_RetryAfter(t *testing.T) {
	rec := renderError(t, domain.NewRateLimitError(1500*time.Millisecond))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
}

func TestHTTPErrorHandler_EchoError(t *testing.T) {
	rec := renderError(t, echo.NewHTTPError(http.StatusUnauthorized, "invalid token"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "invalid token" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestHTTPErrorHandler_ReportMissing(t *testing.T) {
	err := fmt.Errorf("%w: %v", domain.ErrReportMissing, errors.New("mongo: connection reset"))
	rec := renderError(t, err)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != domain.ErrReportMissing.Error() {
		t.Fatalf("internal detail leaked: %q", got)
	}
}

func TestHTTPErrorHandler_Unexpected(t *testing.T) {
	rec := renderError(t, errors.New("mongo: connection reset"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "internal server error" {
		t.Fatalf("internal detail leaked: %q", got)
	}
}
