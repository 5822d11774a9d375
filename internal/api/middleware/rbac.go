package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// RBAC lets the request through only when the role resolved by Auth is allowed.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			if _, ok := allowed[role]; !ok {
				return &domain.Error{Kind: domain.ErrForbidden, Message: "forbidden"}
			}
			return next(c)
		}
	}
}
