package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muni-digital/turnos-api/internal/models"
)

const statColumns = `id, stat_date, department_id, employee_id, generated, attended, absent, redirected, cancelled,
        avg_wait_minutes, avg_service_minutes, total_service_minutes, min_wait_minutes, max_wait_minutes,
        cur_hour, cur_hour_count, peak_hour, peak_count, updated_at`

// StatsRepository maintains the incremental daily aggregates. Every write is
// a single upsert so concurrent lifecycle operations never lose increments to
// a read-modify-write race; derived values (running means, extrema, peak hour)
// are folded in with SQL arithmetic on the existing row.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// DB exposes the underlying handle for non-transactional reads.
func (r *StatsRepository) DB() *sqlx.DB {
	return r.db
}

// IncrementGenerated bumps the generated counter for one aggregate row and
// folds the hour into the peak-hour tracker. The peak only moves when the
// current hour's count strictly exceeds the recorded peak, so ties keep the
// earlier hour.
func (r *StatsRepository) IncrementGenerated(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string, hour int) error {
	const query = `INSERT INTO daily_stats (id, stat_date, department_id, employee_id,
        generated, attended, absent, redirected, cancelled,
        avg_wait_minutes, avg_service_minutes, total_service_minutes, min_wait_minutes, max_wait_minutes,
        cur_hour, cur_hour_count, peak_hour, peak_count, updated_at)
        VALUES ($1, $2, $3, $4, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, $5, 1, $5, 1, NOW())
        ON CONFLICT (stat_date, department_id, employee_id) DO UPDATE SET
        generated = daily_stats.generated + 1,
        peak_hour = CASE
            WHEN (CASE WHEN daily_stats.cur_hour = EXCLUDED.cur_hour THEN daily_stats.cur_hour_count + 1 ELSE 1 END) > daily_stats.peak_count
            THEN EXCLUDED.cur_hour
            ELSE daily_stats.peak_hour END,
        peak_count = CASE
            WHEN (CASE WHEN daily_stats.cur_hour = EXCLUDED.cur_hour THEN daily_stats.cur_hour_count + 1 ELSE 1 END) > daily_stats.peak_count
            THEN (CASE WHEN daily_stats.cur_hour = EXCLUDED.cur_hour THEN daily_stats.cur_hour_count + 1 ELSE 1 END)
            ELSE daily_stats.peak_count END,
        cur_hour_count = CASE WHEN daily_stats.cur_hour = EXCLUDED.cur_hour THEN daily_stats.cur_hour_count + 1 ELSE 1 END,
        cur_hour = EXCLUDED.cur_hour,
        updated_at = NOW()`
	if _, err := q.ExecContext(ctx, query, uuid.NewString(), date.Format("2006-01-02"), departmentID, employeeID, hour); err != nil {
		return fmt.Errorf("increment generated stat: %w", err)
	}
	return nil
}

// IncrementAttended bumps the attended counter and folds the wait and service
// durations into the running means, the service total and the wait extrema.
func (r *StatsRepository) IncrementAttended(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string, waitMinutes, serviceMinutes int) error {
	const query = `INSERT INTO daily_stats (id, stat_date, department_id, employee_id,
        generated, attended, absent, redirected, cancelled,
        avg_wait_minutes, avg_service_minutes, total_service_minutes, min_wait_minutes, max_wait_minutes,
        cur_hour, cur_hour_count, peak_hour, peak_count, updated_at)
        VALUES ($1, $2, $3, $4, 0, 1, 0, 0, 0, $5, $6, $6, $5, $5, 0, 0, 0, 0, NOW())
        ON CONFLICT (stat_date, department_id, employee_id) DO UPDATE SET
        attended = daily_stats.attended + 1,
        avg_wait_minutes = (daily_stats.avg_wait_minutes * daily_stats.attended + $5) / (daily_stats.attended + 1),
        avg_service_minutes = (daily_stats.avg_service_minutes * daily_stats.attended + $6) / (daily_stats.attended + 1),
        total_service_minutes = daily_stats.total_service_minutes + $6,
        min_wait_minutes = CASE WHEN daily_stats.attended = 0 THEN $5 ELSE LEAST(daily_stats.min_wait_minutes, $5) END,
        max_wait_minutes = GREATEST(daily_stats.max_wait_minutes, $5),
        updated_at = NOW()`
	if _, err := q.ExecContext(ctx, query, uuid.NewString(), date.Format("2006-01-02"), departmentID, employeeID, waitMinutes, serviceMinutes); err != nil {
		return fmt.Errorf("increment attended stat: %w", err)
	}
	return nil
}

// IncrementCounter bumps one of the plain outcome counters: absent,
// redirected or cancelled.
func (r *StatsRepository) IncrementCounter(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID, counter string) error {
	switch counter {
	case "absent", "redirected", "cancelled":
	default:
		return fmt.Errorf("unknown stat counter %q", counter)
	}
	query := fmt.Sprintf(`INSERT INTO daily_stats (id, stat_date, department_id, employee_id,
        generated, attended, absent, redirected, cancelled,
        avg_wait_minutes, avg_service_minutes, total_service_minutes, min_wait_minutes, max_wait_minutes,
        cur_hour, cur_hour_count, peak_hour, peak_count, updated_at)
        VALUES ($1, $2, $3, $4, 0, 0, %s, 0, 0, 0, 0, 0, 0, 0, 0, 0, NOW())
        ON CONFLICT (stat_date, department_id, employee_id) DO UPDATE SET
        %s = daily_stats.%s + 1,
        updated_at = NOW()`, counterSeed(counter), counter, counter)
	if _, err := q.ExecContext(ctx, query, uuid.NewString(), date.Format("2006-01-02"), departmentID, employeeID); err != nil {
		return fmt.Errorf("increment %s stat: %w", counter, err)
	}
	return nil
}

// counterSeed positions the initial 1 inside the absent/redirected/cancelled
// value triple.
func counterSeed(counter string) string {
	switch counter {
	case "absent":
		return "1, 0, 0"
	case "redirected":
		return "0, 1, 0"
	default:
		return "0, 0, 1"
	}
}

// Find returns one aggregate row, or sql.ErrNoRows.
func (r *StatsRepository) Find(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string) (*models.StatAggregate, error) {
	query := fmt.Sprintf(`SELECT %s FROM daily_stats
        WHERE stat_date = $1 AND department_id = $2 AND employee_id = $3`, statColumns)
	var agg models.StatAggregate
	if err := sqlx.GetContext(ctx, q, &agg, query, date.Format("2006-01-02"), departmentID, employeeID); err != nil {
		return nil, err
	}
	return &agg, nil
}

// List returns aggregate rows matching the filter, ordered by date then
// department.
func (r *StatsRepository) List(ctx context.Context, q sqlx.ExtContext, filter models.StatFilter) ([]models.StatAggregate, error) {
	query := fmt.Sprintf(`SELECT %s FROM daily_stats
        WHERE stat_date >= $1 AND stat_date <= $2`, statColumns)
	args := []interface{}{filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02")}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		query += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	query += " ORDER BY stat_date ASC, department_id ASC, employee_id ASC"
	var aggs []models.StatAggregate
	if err := sqlx.SelectContext(ctx, q, &aggs, query, args...); err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	return aggs, nil
}

// Reset zeroes every counter on the matching rows. An empty department id
// resets the whole day. Audit history is untouched, so the day could be
// recomputed from it if ever needed.
func (r *StatsRepository) Reset(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID string) (int64, error) {
	query := `UPDATE daily_stats SET
        generated = 0, attended = 0, absent = 0, redirected = 0, cancelled = 0,
        avg_wait_minutes = 0, avg_service_minutes = 0, total_service_minutes = 0,
        min_wait_minutes = 0, max_wait_minutes = 0,
        cur_hour = 0, cur_hour_count = 0, peak_hour = 0, peak_count = 0,
        updated_at = NOW()
        WHERE stat_date = $1`
	args := []interface{}{date.Format("2006-01-02")}
	if departmentID != "" {
		args = append(args, departmentID)
		query += " AND department_id = $2"
	}
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset daily stats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check reset rows: %w", err)
	}
	return rows, nil
}
