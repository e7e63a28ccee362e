package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/models"
)

func TestIncrementGenerated(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO daily_stats").
		WithArgs(sqlmock.AnyArg(), "2026-08-31", "dep-1", "", 10).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.IncrementGenerated(context.Background(), db, day, "dep-1", "", 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementAttended(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("avg_wait_minutes = (daily_stats.avg_wait_minutes * daily_stats.attended + $5) / (daily_stats.attended + 1)")).
		WithArgs(sqlmock.AnyArg(), "2026-08-31", "dep-1", "emp-1", 9, 15).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.IncrementAttended(context.Background(), db, day, "dep-1", "emp-1", 9, 15)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCounter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("redirected = daily_stats.redirected + 1")).
		WithArgs(sqlmock.AnyArg(), "2026-08-31", "dep-1", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.IncrementCounter(context.Background(), db, day, "dep-1", "", "redirected")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCounterRejectsUnknown(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	err := repo.IncrementCounter(context.Background(), db, time.Now(), "dep-1", "", "generated")
	assert.Error(t, err)
}

func TestFindStat(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "stat_date", "department_id", "employee_id",
		"generated", "attended", "absent", "redirected", "cancelled",
		"avg_wait_minutes", "avg_service_minutes", "total_service_minutes", "min_wait_minutes", "max_wait_minutes",
		"cur_hour", "cur_hour_count", "peak_hour", "peak_count", "updated_at"}).
		AddRow("stat-1", day, "dep-1", "", 12, 9, 1, 1, 1, 7.5, 12.0, 108, 2, 20, 11, 3, 10, 5, now)
	mock.ExpectQuery("SELECT (.+) FROM daily_stats").
		WithArgs("2026-08-31", "dep-1", "").
		WillReturnRows(rows)

	agg, err := repo.Find(context.Background(), db, day, "dep-1", "")
	require.NoError(t, err)
	assert.Equal(t, 12, agg.Generated)
	assert.Equal(t, 10, agg.PeakHour)
	assert.True(t, agg.IsDepartmentWide())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindStatMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM daily_stats").WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), db, time.Now(), "dep-1", "")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListStatsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND department_id = $3 AND employee_id = $4 ORDER BY stat_date ASC, department_id ASC, employee_id ASC")).
		WithArgs("2026-08-01", "2026-08-31", "dep-1", "emp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), db, models.StatFilter{
		From: from, To: to, DepartmentID: "dep-1", EmployeeID: "emp-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE daily_stats SET").
		WithArgs("2026-08-31", "dep-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	rows, err := repo.Reset(context.Background(), db, day, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
