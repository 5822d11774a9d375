package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	scope      string
	subject    string
}

func (s *stubLimiter) Allow(_ context.Context, scope, subject string) (bool, time.Duration, error) {
	s.scope, s.subject = scope, subject
	return s.allowed, s.retryAfter, s.err
}

func newRateLimitContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/join", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRateLimit_Allows(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	called := false
	handler := RateLimit(limiter, "join", zerolog.Nop())(func(c echo.Context) error {
		called = true
		return nil
	})

	if err := handler(newRateLimitContext()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if limiter.scope != "join" || limiter.subject != "203.0.113.7" {
		t.Fatalf("unexpected limiter key %s/%s", limiter.scope, limiter.subject)
	}
}

func TestRateLimit_Blocks(t *testing.T) {
	limiter := &stubLimiter{allowed: false, retryAfter: 42 * time.Second}
	handler := RateLimit(limiter, "join", zerolog.Nop())(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	err := handler(newRateLimitContext())
	var derr *domain.Error
	if !errors.As(err, &derr) || !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if derr.RetryAfter != 42*time.Second {
		t.Fatalf("expected retry after 42s, got %s", derr.RetryAfter)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	called := false
	handler := RateLimit(limiter, "join", zerolog.Nop())(func(c echo.Context) error {
		called = true
		return nil
	})

	if err := handler(newRateLimitContext()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("request should pass when the limiter is unavailable")
	}
}
