package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/muni-digital/turnos-api/internal/models"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
	"github.com/muni-digital/turnos-api/pkg/export"
)

type statsReader interface {
	Find(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string) (*models.StatAggregate, error)
	List(ctx context.Context, q sqlx.ExtContext, filter models.StatFilter) ([]models.StatAggregate, error)
	Reset(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID string) (int64, error)
}

// maxStatRangeDays bounds range reads the same way audit reads are bounded.
const maxStatRangeDays = 366

// StatsService serves the read side of the daily aggregates plus the
// administrative reset and report exports.
type StatsService struct {
	db     *sqlx.DB
	stats  statsReader
	logger *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(db *sqlx.DB, stats statsReader, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{db: db, stats: stats, logger: logger}
}

// DepartmentDay returns the department-wide aggregate for one day, with
// derived metrics. A day with no events yields an all-zero summary.
func (s *StatsService) DepartmentDay(ctx context.Context, date time.Time, departmentID string) (*models.StatSummary, error) {
	if departmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department id is required")
	}
	agg, err := s.stats.Find(ctx, s.db, date, departmentID, "")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			empty := models.StatAggregate{StatDate: date, DepartmentID: departmentID}
			return summarize(empty), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily stats")
	}
	return summarize(*agg), nil
}

// Range returns aggregate summaries matching the filter.
func (s *StatsService) Range(ctx context.Context, filter models.StatFilter) ([]models.StatSummary, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	aggs, err := s.stats.List(ctx, s.db, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stats range")
	}
	summaries := make([]models.StatSummary, 0, len(aggs))
	for _, agg := range aggs {
		summaries = append(summaries, *summarize(agg))
	}
	return summaries, nil
}

// Reset zeroes the counters for one day, optionally scoped to a department.
// The audit trail is untouched; a reset day can be recomputed from it.
func (s *StatsService) Reset(ctx context.Context, date time.Time, departmentID string) (int64, error) {
	rows, err := s.stats.Reset(ctx, s.db, date, departmentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset stats")
	}
	s.logger.Info("daily stats reset",
		zap.String("date", date.Format("2006-01-02")),
		zap.String("department_id", departmentID),
		zap.Int64("rows", rows))
	return rows, nil
}

// Export renders the matching aggregates as a CSV or PDF report.
func (s *StatsService) Export(ctx context.Context, filter models.StatFilter, format string) ([]byte, string, error) {
	summaries, err := s.Range(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	report := buildReport(filter, summaries)
	switch format {
	case "csv":
		data, err := report.RenderCSV()
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return data, "text/csv", nil
	case "pdf":
		data, err := report.RenderPDF()
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return data, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
}

func buildReport(filter models.StatFilter, summaries []models.StatSummary) export.Report {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		employee := s.EmployeeID
		if employee == "" {
			employee = "department"
		}
		rows = append(rows, []string{
			s.StatDate.Format("2006-01-02"),
			s.DepartmentID,
			employee,
			strconv.Itoa(s.Generated),
			strconv.Itoa(s.Attended),
			strconv.Itoa(s.Absent),
			strconv.Itoa(s.Redirected),
			strconv.Itoa(s.Cancelled),
			fmt.Sprintf("%.2f", s.AvgWaitMinutes),
			fmt.Sprintf("%.2f", s.AvgServiceMinutes),
			strconv.Itoa(s.PeakHour),
			fmt.Sprintf("%.2f", s.EfficiencyPercent),
		})
	}
	return export.Report{
		Title:  "Daily attention report",
		Period: fmt.Sprintf("%s to %s", filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02")),
		Columns: []string{"Date", "Department", "Employee", "Generated", "Attended", "Absent",
			"Redirected", "Cancelled", "Avg wait (min)", "Avg service (min)", "Peak hour", "Efficiency %"},
		Rows: rows,
	}
}

func summarize(agg models.StatAggregate) *models.StatSummary {
	return &models.StatSummary{
		StatAggregate:     agg,
		TotalProcessed:    agg.TotalProcessed(),
		EfficiencyPercent: agg.EfficiencyPercent(),
		AbsencePercent:    agg.AbsencePercent(),
		RedirectPercent:   agg.RedirectPercent(),
	}
}

func checkRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "from and to dates are required")
	}
	if to.Before(from) {
		return appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}
	if to.Sub(from) > maxStatRangeDays*24*time.Hour {
		return appErrors.Clone(appErrors.ErrValidation, "date range exceeds the maximum window")
	}
	return nil
}
