package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/internal/service"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
	"github.com/muni-digital/turnos-api/pkg/response"
)

// StatsHandler exposes the statistics read, reset and export endpoints.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// DepartmentDay godoc
// @Summary Daily summary for one department
// @Tags Stats
// @Produce json
// @Param id path string true "Department id"
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /stats/departments/{id} [get]
func (h *StatsHandler) DepartmentDay(c *gin.Context) {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	summary, err := h.stats.DepartmentDay(c.Request.Context(), date, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Range godoc
// @Summary Aggregate summaries for a date range
// @Tags Stats
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param departmentId query string false "Filter by department"
// @Param employeeId query string false "Filter by employee"
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *StatsHandler) Range(c *gin.Context) {
	filter, err := statFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summaries, err := h.stats.Range(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Reset godoc
// @Summary Zero the counters for one day (administrative)
// @Tags Stats
// @Produce json
// @Param date query string true "Day (YYYY-MM-DD)"
// @Param departmentId query string false "Scope to one department"
// @Success 200 {object} response.Envelope
// @Router /stats/reset [post]
func (h *StatsHandler) Reset(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}
	rows, err := h.stats.Reset(c.Request.Context(), date, c.Query("departmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"reset_rows": rows}, nil)
}

// Export godoc
// @Summary Export aggregates as CSV or PDF
// @Tags Stats
// @Produce text/csv
// @Param format query string true "csv or pdf"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param departmentId query string false "Filter by department"
// @Param employeeId query string false "Filter by employee"
// @Success 200 {file} binary
// @Router /stats/export [get]
func (h *StatsHandler) Export(c *gin.Context) {
	filter, err := statFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	data, contentType, err := h.stats.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("stats_%s_%s.%s",
		filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func statFilterFromQuery(c *gin.Context) (models.StatFilter, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return models.StatFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return models.StatFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD")
	}
	return models.StatFilter{
		From:         from,
		To:           to,
		DepartmentID: c.Query("departmentId"),
		EmployeeID:   c.Query("employeeId"),
	}, nil
}
