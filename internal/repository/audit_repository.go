package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muni-digital/turnos-api/internal/models"
)

const auditColumns = `id, turn_id, action, employee_id, before_state, after_state,
        before_priority, after_priority, origin_department_id, destination_department_id, notes, created_at`

// AuditRepository is the append-only store of turn lifecycle records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// DB exposes the underlying handle for non-transactional reads.
func (r *AuditRepository) DB() *sqlx.DB {
	return r.db
}

// Record inserts an audit entry. There is no update or delete path on this
// table anywhere in the codebase.
func (r *AuditRepository) Record(ctx context.Context, q sqlx.ExtContext, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO turn_audit_entries (id, turn_id, action, employee_id, before_state, after_state,
        before_priority, after_priority, origin_department_id, destination_department_id, notes, created_at)
        VALUES (:id, :turn_id, :action, :employee_id, :before_state, :after_state,
        :before_priority, :after_priority, :origin_department_id, :destination_department_id, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// HistoryForTurn returns the full history of one turn, oldest first.
func (r *AuditRepository) HistoryForTurn(ctx context.Context, q sqlx.ExtContext, turnID string) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM turn_audit_entries
        WHERE turn_id = $1
        ORDER BY created_at ASC, id ASC`, auditColumns)
	var entries []models.AuditEntry
	if err := sqlx.SelectContext(ctx, q, &entries, query, turnID); err != nil {
		return nil, fmt.Errorf("list turn history: %w", err)
	}
	return entries, nil
}

// Recent returns the newest entries across all turns, newest first.
func (r *AuditRepository) Recent(ctx context.Context, q sqlx.ExtContext, limit int) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM turn_audit_entries
        ORDER BY created_at DESC, id DESC
        LIMIT $1`, auditColumns)
	var entries []models.AuditEntry
	if err := sqlx.SelectContext(ctx, q, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list recent audit entries: %w", err)
	}
	return entries, nil
}

// ListByEmployee returns one employee's entries inside a date range, newest
// first.
func (r *AuditRepository) ListByEmployee(ctx context.Context, q sqlx.ExtContext, filter models.AuditFilter) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM turn_audit_entries
        WHERE employee_id = $1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at DESC, id DESC
        LIMIT $4`, auditColumns)
	var entries []models.AuditEntry
	if err := sqlx.SelectContext(ctx, q, &entries, query,
		filter.EmployeeID, filter.From, filter.To, filter.Limit); err != nil {
		return nil, fmt.Errorf("list audit entries by employee: %w", err)
	}
	return entries, nil
}
