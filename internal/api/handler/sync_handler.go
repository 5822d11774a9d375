package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

// SyncHandler serves the movement ledger and aggregate reads.
type SyncHandler struct {
	service ports.SyncService
}

func NewSyncHandler(service ports.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// RecordMovements handles POST /v1/sessions/:id/movements. Retrying a batch
// is safe: already stored client ids are confirmed again without double counting.
//
// @Summary      Push a batch of movements
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        id    path      string                  true  "Session ID"
// @Param        body  body      recordMovementsRequest  true  "Movements"
// @Success      200   {object}  recordMovementsResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /v1/sessions/{id}/movements [post]
func (h *SyncHandler) RecordMovements(c echo.Context) error {
	var req recordMovementsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.service.RecordMovements(c.Request().Context(), toRecordInput(c.Param("id"), req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recordMovementsResponse{
		AcceptedCount:      res.AcceptedCount,
		ConfirmedClientIDs: res.ConfirmedClientIDs,
		Aggregates:         nonNil(res.Aggregates),
	})
}

// Aggregates handles GET /v1/sessions/:id/aggregates?participant_id=.
// Answers 409 once the session is closed so clients stop polling.
//
// @Summary      Live per-barcode totals for participants
// @Tags         sync
// @Produce      json
// @Param        id              path      string  true  "Session ID"
// @Param        participant_id  query     string  true  "Participant ID"
// @Success      200  {object}  aggregatesResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/sessions/{id}/aggregates [get]
func (h *SyncHandler) Aggregates(c echo.Context) error {
	participantID := c.QueryParam("participant_id")
	if participantID == "" {
		return domain.NewValidationError("participant_id is required")
	}

	balances, err := h.service.Aggregates(c.Request().Context(), c.Param("id"), participantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, aggregatesResponse{
		SessionID:     c.Param("id"),
		SessionStatus: domain.SessionOpen,
		Aggregates:    nonNil(balances),
	})
}

// HostAggregates handles GET /v1/sessions/:id/host-aggregates.
//
// @Summary      Per-barcode totals for the host, in any session status
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  aggregatesResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{id}/host-aggregates [get]
func (h *SyncHandler) HostAggregates(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	session, balances, err := h.service.HostAggregates(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, aggregatesResponse{
		SessionID:     session.ID,
		SessionStatus: session.Status,
		Aggregates:    nonNil(balances),
	})
}

// SyncStatus handles GET /v1/sessions/:id/sync-status.
//
// @Summary      Last sync per participant before closing
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  syncStatusResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{id}/sync-status [get]
func (h *SyncHandler) SyncStatus(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	res, err := h.service.PendingSync(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSyncStatusResponse(res))
}

// ResetMovements handles DELETE /v1/admin/sessions/:id/movements.
//
// @Summary      Purge a session's movement ledger
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  resetResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/admin/sessions/{id}/movements [delete]
func (h *SyncHandler) ResetMovements(c echo.Context) error {
	deleted, err := h.service.ResetMovements(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resetResponse{Deleted: deleted})
}
