package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/conteo/inventory-sync/internal/api/metrics"
	"github.com/conteo/inventory-sync/internal/core/domain"
)

// Limiter is implemented by the Redis fixed-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string) (bool, time.Duration, error)
}

// RateLimit throttles requests per client IP under scope. The counter lives
// in Redis so the limit holds across instances. If Redis is unavailable the
// request is let through.
func RateLimit(limiter Limiter, scope string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), scope, c.RealIP())
			if err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
				return next(c)
			}
			if !allowed {
				metrics.JoinFailuresTotal.WithLabelValues("rate_limited").Inc()
				return domain.NewRateLimitError(retryAfter)
			}
			return next(c)
		}
	}
}
