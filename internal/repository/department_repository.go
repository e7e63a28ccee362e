package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/muni-digital/turnos-api/internal/models"
)

const departmentColumns = `id, code, name, active, requires_appointment, responsible_employee_id, created_at`

// DepartmentRepository resolves departments and their weekly schedules.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// DB exposes the underlying handle for non-transactional reads.
func (r *DepartmentRepository) DB() *sqlx.DB {
	return r.db
}

// FindByID returns a department by id, or sql.ErrNoRows.
func (r *DepartmentRepository) FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE id = $1`, departmentColumns)
	var dept models.Department
	if err := sqlx.GetContext(ctx, q, &dept, query, id); err != nil {
		return nil, err
	}
	return &dept, nil
}

// ListActive returns the active departments ordered by code, for the public
// display index.
func (r *DepartmentRepository) ListActive(ctx context.Context, q sqlx.ExtContext) ([]models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE active = TRUE ORDER BY code ASC`, departmentColumns)
	var depts []models.Department
	if err := sqlx.SelectContext(ctx, q, &depts, query); err != nil {
		return nil, fmt.Errorf("list active departments: %w", err)
	}
	return depts, nil
}

// BlocksForDay returns a department's schedule blocks for one weekday
// (0=Sunday), ordered by start time.
func (r *DepartmentRepository) BlocksForDay(ctx context.Context, q sqlx.ExtContext, departmentID string, dayOfWeek int) ([]models.ScheduleBlock, error) {
	const query = `SELECT id, department_id, day_of_week, start_time, end_time, interval_minutes, capacity
        FROM department_schedules
        WHERE department_id = $1 AND day_of_week = $2
        ORDER BY start_time ASC`
	var blocks []models.ScheduleBlock
	if err := sqlx.SelectContext(ctx, q, &blocks, query, departmentID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return blocks, nil
}
