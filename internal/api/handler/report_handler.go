package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportHandler finalizes sessions and serves saved reconciliation reports.
type ReportHandler struct {
	service ports.ReportService
}

func NewReportHandler(service ports.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Finalize handles POST /v1/sessions/:id/finalize.
//
// @Summary      Close a session and generate its report
// @Description  Exactly one call per session succeeds; later calls answer 400.
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  finalizeResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /v1/sessions/{id}/finalize [post]
func (h *ReportHandler) Finalize(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	report, err := h.service.FinalizeSession(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, finalizeResponse{
		SessionID: c.Param("id"),
		Status:    string(domain.SessionFinalized),
		Report:    report,
	})
}

// Regenerate handles POST /v1/sessions/:id/report/regenerate.
//
// @Summary      Rebuild a missing report
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  finalizeResponse
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/sessions/{id}/report/regenerate [post]
func (h *ReportHandler) Regenerate(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	report, err := h.service.RegenerateReport(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, finalizeResponse{
		SessionID: c.Param("id"),
		Status:    string(domain.SessionFinalized),
		Report:    report,
	})
}

// List handles GET /v1/reports.
//
// @Summary      List the caller's saved reports
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  reportListResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/reports [get]
func (h *ReportHandler) List(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	reports, err := h.service.ListReports(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reportListResponse{Reports: reports})
}

// Download handles GET /v1/reports/:id and returns the stored CSV.
//
// @Summary      Download a report as CSV
// @Tags         reports
// @Produce      text/csv
// @Security     BearerAuth
// @Param        id   path  string  true  "Report ID"
// @Success      200  {file}    file
// @Failure      404  {object}  errorResponse
// @Router       /v1/reports/{id} [get]
func (h *ReportHandler) Download(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	report, err := h.service.GetReport(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	setAttachment(c, report.Filename)
	return c.Blob(http.StatusOK, mimeCSV, report.Content)
}

// DownloadXLSX handles GET /v1/reports/:id/xlsx.
//
// @Summary      Download a report as a spreadsheet
// @Tags         reports
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id   path  string  true  "Report ID"
// @Success      200  {file}    file
// @Failure      404  {object}  errorResponse
// @Router       /v1/reports/{id}/xlsx [get]
func (h *ReportHandler) DownloadXLSX(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	filename, content, err := h.service.ExportXLSX(c.Request().Context(), c.Param("id"), id.UserID)
	if err != nil {
		return err
	}
	setAttachment(c, filename)
	return c.Blob(http.StatusOK, mimeXLSX, content)
}

func setAttachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
}
