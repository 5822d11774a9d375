package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

type routerSessions struct{ ports.SessionService }

func (routerSessions) ListHostSessions(ctx context.Context, hostID string) ([]*domain.Session, error) {
	return []*domain.Session{{ID: "s1", HostID: hostID}}, nil
}

func (routerSessions) JoinSession(ctx context.Context, code, name string) (*ports.JoinResult, error) {
	return nil, domain.ErrSessionNotFound
}

type routerSync struct{ ports.SyncService }

func (routerSync) ResetMovements(ctx context.Context, sessionID string) (int64, error) {
	return 3, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, scope, subject string) (bool, time.Duration, error) {
	return false, 30 * time.Second, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Dependencies{
		Sessions:  routerSessions{},
		Sync:      routerSync{},
		JWTSecret: "secret",
		Log:       zerolog.Nop(),
		Registry:  prometheus.NewRegistry(),
	})
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID, "role": role})
	signed, err := tok.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + signed
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HostRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t)

	if rec := serve(h, http.MethodGet, "/v1/sessions", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/v1/sessions", bearer(t, "host-1", domain.RoleHost), ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestRouter_AdminRouteRequiresAdminRole(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodDelete, "/v1/admin/sessions/s1/movements", bearer(t, "host-1", domain.RoleHost), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for host, got %d", rec.Code)
	}
	rec = serve(h, http.MethodDelete, "/v1/admin/sessions/s1/movements", bearer(t, "root", domain.RoleAdmin), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestRouter_JoinIsPublicAndRateLimited(t *testing.T) {
	h := newTestRouter(t)
	body := `{"access_code":"ABC234","participant_name":"Ana"}`

	if rec := serve(h, http.MethodPost, "/v1/join", "", body); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", rec.Code)
	}

	limited := NewRouter(Dependencies{
		Sessions:    routerSessions{},
		JoinLimiter: denyLimiter{},
		JWTSecret:   "secret",
		Log:         zerolog.Nop(),
		Registry:    prometheus.NewRegistry(),
	})
	rec := serve(limited, http.MethodPost, "/v1/join", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected Retry-After 30, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)
	if rec := serve(h, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected ready with no checks, got %d", rec.Code)
	}
}
