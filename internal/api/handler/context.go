package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/api/middleware"
	"github.com/conteo/inventory-sync/internal/core/domain"
)

// ctxIdentity returns the host identity injected by the Auth middleware.
// A missing identity means the route was wired without Auth.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := c.Get(middleware.ContextIdentity).(domain.Identity)
	if !ok || id.UserID == "" {
		return domain.Identity{}, domain.ErrMissingIdentity
	}
	return id, nil
}

// bindAndValidate decodes the request body into req and runs struct validation.
// Both failures are reported as validation errors (400).
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return domain.NewValidationError(err.Error())
	}
	return nil
}
