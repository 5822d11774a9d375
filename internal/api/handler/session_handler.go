package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

// SessionHandler serves session lifecycle endpoints for hosts and participants.
type SessionHandler struct {
	service ports.SessionService
}

func NewSessionHandler(service ports.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Create handles POST /v1/sessions.
//
// @Summary      Open a counting session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createSessionRequest  true  "Session"
// @Success      201   {object}  domain.Session
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /v1/sessions [post]
func (h *SessionHandler) Create(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	mode := domain.SessionMode(req.Mode)
	if mode == "" {
		mode = domain.ModeMultiplayer
	}

	session, err := h.service.CreateSession(c.Request().Context(), ports.CreateSessionInput{
		HostID:    id.UserID,
		CompanyID: id.CompanyID,
		Name:      req.Name,
		Mode:      mode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

// List handles GET /v1/sessions.
//
// @Summary      List the caller's sessions
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  sessionListResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/sessions [get]
func (h *SessionHandler) List(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	sessions, err := h.service.ListHostSessions(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionListResponse{Sessions: sessions})
}

// Personal handles POST /v1/sessions/personal. The host's individual session
// is created on first use and returned afterwards.
//
// @Summary      Get or create the caller's personal session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      personalSessionRequest  false  "Display name"
// @Success      200   {object}  joinResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/sessions/personal [post]
func (h *SessionHandler) Personal(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req personalSessionRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	name := req.DisplayName
	if name == "" {
		name = id.Username
	}
	if name == "" {
		name = id.UserID
	}

	res, err := h.service.EnsurePersonalSession(c.Request().Context(), id.UserID, name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toJoinResponse(res))
}

// Get handles GET /v1/sessions/:id.
//
// @Summary      Get a session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  domain.Session
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{id} [get]
func (h *SessionHandler) Get(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	session, err := h.service.GetSession(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// Join handles POST /v1/join. Unknown codes and sessions that no longer
// accept participants both answer 404.
//
// @Summary      Join a session by access code
// @Tags         participants
// @Accept       json
// @Produce      json
// @Param        body  body      joinRequest  true  "Access code and display name"
// @Success      200   {object}  joinResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /v1/join [post]
func (h *SessionHandler) Join(c echo.Context) error {
	var req joinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.service.JoinSession(c.Request().Context(), req.AccessCode, req.ParticipantName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toJoinResponse(res))
}

// Leave handles POST /v1/sessions/:id/participants/:participant_id/leave.
//
// @Summary      Mark a participant as finished
// @Tags         participants
// @Param        id              path  string  true  "Session ID"
// @Param        participant_id  path  string  true  "Participant ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/sessions/{id}/participants/{participant_id}/leave [post]
func (h *SessionHandler) Leave(c echo.Context) error {
	if err := h.service.LeaveSession(c.Request().Context(), c.Param("id"), c.Param("participant_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
