package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/models"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type memStatsReader struct {
	aggregates []models.StatAggregate
	resetRows  int64
	resetDate  time.Time
	resetDept  string
}

func (m *memStatsReader) Find(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string) (*models.StatAggregate, error) {
	for _, agg := range m.aggregates {
		if agg.StatDate.Equal(date) && agg.DepartmentID == departmentID && agg.EmployeeID == employeeID {
			cp := agg
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStatsReader) List(ctx context.Context, q sqlx.ExtContext, filter models.StatFilter) ([]models.StatAggregate, error) {
	return m.aggregates, nil
}

func (m *memStatsReader) Reset(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID string) (int64, error) {
	m.resetDate = date
	m.resetDept = departmentID
	return m.resetRows, nil
}

func TestDepartmentDay(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	reader := &memStatsReader{aggregates: []models.StatAggregate{
		{StatDate: day, DepartmentID: "dep-a", Generated: 10, Attended: 7, Absent: 2, Cancelled: 1, Redirected: 1},
	}}
	svc := NewStatsService(nil, reader, nil)

	summary, err := svc.DepartmentDay(context.Background(), day, "dep-a")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Generated)
	assert.Equal(t, 10, summary.TotalProcessed)
	assert.InDelta(t, 70.0, summary.EfficiencyPercent, 0.001)
	assert.InDelta(t, 20.0, summary.AbsencePercent, 0.001)
	assert.InDelta(t, 10.0, summary.RedirectPercent, 0.001)
}

func TestDepartmentDayWithoutActivity(t *testing.T) {
	svc := NewStatsService(nil, &memStatsReader{}, nil)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	summary, err := svc.DepartmentDay(context.Background(), day, "dep-a")
	require.NoError(t, err)
	assert.Equal(t, "dep-a", summary.DepartmentID)
	assert.Zero(t, summary.Generated)
	assert.Zero(t, summary.EfficiencyPercent)
}

func TestStatsRangeValidation(t *testing.T) {
	svc := NewStatsService(nil, &memStatsReader{}, nil)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Range(context.Background(), models.StatFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Range(context.Background(), models.StatFilter{From: from, To: from.AddDate(0, 0, -1)})
	require.Error(t, err)

	_, err = svc.Range(context.Background(), models.StatFilter{From: from, To: from.AddDate(2, 0, 0)})
	require.Error(t, err)

	_, err = svc.Range(context.Background(), models.StatFilter{From: from, To: from.AddDate(0, 1, 0)})
	assert.NoError(t, err)
}

func TestStatsReset(t *testing.T) {
	reader := &memStatsReader{resetRows: 3}
	svc := NewStatsService(nil, reader, nil)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	rows, err := svc.Reset(context.Background(), day, "dep-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.Equal(t, day, reader.resetDate)
	assert.Equal(t, "dep-a", reader.resetDept)
}

func TestExportCSV(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	reader := &memStatsReader{aggregates: []models.StatAggregate{
		{StatDate: day, DepartmentID: "dep-a", Generated: 4, Attended: 3, AvgWaitMinutes: 7.5, PeakHour: 10},
		{StatDate: day, DepartmentID: "dep-a", EmployeeID: "emp-1", Generated: 2, Attended: 2},
	}}
	svc := NewStatsService(nil, reader, nil)
	filter := models.StatFilter{From: day, To: day}

	data, contentType, err := svc.Export(context.Background(), filter, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Date,Department,Employee,Generated")
	assert.Contains(t, lines[1], "2026-08-31,dep-a,department,4,3")
	assert.Contains(t, lines[1], "7.50")
	assert.Contains(t, lines[2], "emp-1")
}

func TestExportPDF(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	svc := NewStatsService(nil, &memStatsReader{}, nil)

	data, contentType, err := svc.Export(context.Background(), models.StatFilter{From: day, To: day}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportUnsupportedFormat(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	svc := NewStatsService(nil, &memStatsReader{}, nil)

	_, _, err := svc.Export(context.Background(), models.StatFilter{From: day, To: day}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
