package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/core/ports"
)

// CatalogHandler manages the per-session catalog snapshot used to reconcile counts.
type CatalogHandler struct {
	service ports.SyncService
}

func NewCatalogHandler(service ports.SyncService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Replace handles PUT /v1/sessions/:id/catalog.
//
// @Summary      Replace the session catalog
// @Description  Only allowed while the session is open and before any movement was recorded.
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                 true  "Session ID"
// @Param        body  body      replaceCatalogRequest  true  "Catalog entries"
// @Success      200   {object}  catalogResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /v1/sessions/{id}/catalog [put]
func (h *CatalogHandler) Replace(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req replaceCatalogRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	sessionID := c.Param("id")
	if err := h.service.ReplaceCatalog(ctx, sessionID, id.UserID, toCatalogInputs(req)); err != nil {
		return err
	}

	entries, err := h.service.Catalog(ctx, sessionID, id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCatalogResponse(sessionID, entries))
}

// Get handles GET /v1/sessions/:id/catalog.
//
// @Summary      Get the session catalog
// @Tags         catalog
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  catalogResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{id}/catalog [get]
func (h *CatalogHandler) Get(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	entries, err := h.service.Catalog(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCatalogResponse(c.Param("id"), entries))
}

// Clear handles DELETE /v1/sessions/:id/catalog.
//
// @Summary      Remove the session catalog
// @Tags         catalog
// @Security     BearerAuth
// @Param        id   path  string  true  "Session ID"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/sessions/{id}/catalog [delete]
func (h *CatalogHandler) Clear(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.ClearCatalog(c.Request().Context(), c.Param("id"), id.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
