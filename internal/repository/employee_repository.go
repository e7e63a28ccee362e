package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muni-digital/turnos-api/internal/models"
)

const employeeColumns = `id, email, password_hash, full_name, role, department_id, active, last_login, created_at`

// EmployeeRepository resolves employees and their refresh tokens.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// DB exposes the underlying handle for non-transactional reads.
func (r *EmployeeRepository) DB() *sqlx.DB {
	return r.db
}

// FindByID returns an employee by id, or sql.ErrNoRows.
func (r *EmployeeRepository) FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE id = $1`, employeeColumns)
	var emp models.Employee
	if err := sqlx.GetContext(ctx, q, &emp, query, id); err != nil {
		return nil, err
	}
	return &emp, nil
}

// FindByEmail returns an employee by email, or sql.ErrNoRows.
func (r *EmployeeRepository) FindByEmail(ctx context.Context, q sqlx.ExtContext, email string) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE email = $1`, employeeColumns)
	var emp models.Employee
	if err := sqlx.GetContext(ctx, q, &emp, query, email); err != nil {
		return nil, err
	}
	return &emp, nil
}

// UpdateLastLogin stamps the last successful login time.
func (r *EmployeeRepository) UpdateLastLogin(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) error {
	if _, err := q.ExecContext(ctx, `UPDATE employees SET last_login = $1 WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SaveRefreshToken persists a newly issued refresh token.
func (r *EmployeeRepository) SaveRefreshToken(ctx context.Context, q sqlx.ExtContext, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, employee_id, token, expires_at, created_at, revoked, revoked_at)
        VALUES (:id, :employee_id, :token, :expires_at, :created_at, :revoked, :revoked_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, token); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a stored refresh token, or sql.ErrNoRows.
func (r *EmployeeRepository) FindRefreshToken(ctx context.Context, q sqlx.ExtContext, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, employee_id, token, expires_at, created_at, revoked, revoked_at
        FROM refresh_tokens WHERE token = $1`
	var rt models.RefreshToken
	if err := sqlx.GetContext(ctx, q, &rt, query, token); err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks a refresh token as spent. Rotation revokes the old
// token in the same transaction that issues the replacement.
func (r *EmployeeRepository) RevokeRefreshToken(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1 WHERE id = $2`, at, id); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
