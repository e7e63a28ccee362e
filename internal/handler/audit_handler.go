package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muni-digital/turnos-api/internal/service"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
	"github.com/muni-digital/turnos-api/pkg/response"
)

// AuditHandler exposes the audit trail read endpoints.
type AuditHandler struct {
	audits *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audits *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// TurnHistory godoc
// @Summary Full ordered history of one turn
// @Tags Audit
// @Produce json
// @Param id path string true "Turn id"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/history [get]
func (h *AuditHandler) TurnHistory(c *gin.Context) {
	entries, err := h.audits.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Recent godoc
// @Summary Most recent audit entries system-wide
// @Tags Audit
// @Produce json
// @Param limit query int false "Max entries, capped by server configuration"
// @Success 200 {object} response.Envelope
// @Router /audit/recent [get]
func (h *AuditHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.audits.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ByEmployee godoc
// @Summary Audit entries for one employee in a date range
// @Tags Audit
// @Produce json
// @Param id path string true "Employee id"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /audit/employees/{id} [get]
func (h *AuditHandler) ByEmployee(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.audits.ByEmployee(c.Request.Context(), c.Param("id"), from, to, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
