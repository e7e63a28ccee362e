package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muni-digital/turnos-api/internal/models"
)

const turnColumns = `id, code, citizen_id, department_id, original_department_id, state, type, priority,
        generated_at, called_at, attention_start_at, attention_end_at, appointment_date, appointment_time,
        employee_id, notes, redirection_reason`

// TurnRepository handles persistence of turns and their daily code sequences.
type TurnRepository struct {
	db *sqlx.DB
}

// NewTurnRepository constructs the repository.
func NewTurnRepository(db *sqlx.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

// DB exposes the underlying handle for non-transactional reads.
func (r *TurnRepository) DB() *sqlx.DB {
	return r.db
}

// NextCode atomically advances the per-(department, day) sequence and formats
// the turn code. The upsert serialises concurrent generators on the sequence
// row, so two simultaneous calls can never observe the same number.
func (r *TurnRepository) NextCode(ctx context.Context, q sqlx.ExtContext, departmentID, departmentCode string, day time.Time) (string, error) {
	const query = `INSERT INTO turn_code_sequences (department_id, seq_date, last_number)
        VALUES ($1, $2, 1)
        ON CONFLICT (department_id, seq_date)
        DO UPDATE SET last_number = turn_code_sequences.last_number + 1
        RETURNING last_number`
	var seq int64
	if err := sqlx.GetContext(ctx, q, &seq, query, departmentID, day.Format("2006-01-02")); err != nil {
		return "", fmt.Errorf("next turn code: %w", err)
	}
	return fmt.Sprintf("%s%03d", departmentCode, seq), nil
}

// Create persists a new turn record.
func (r *TurnRepository) Create(ctx context.Context, q sqlx.ExtContext, turn *models.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.GeneratedAt.IsZero() {
		turn.GeneratedAt = time.Now().UTC()
	}
	const query = `INSERT INTO turns (id, code, citizen_id, department_id, original_department_id, state, type, priority,
        generated_at, called_at, attention_start_at, attention_end_at, appointment_date, appointment_time,
        employee_id, notes, redirection_reason)
        VALUES (:id, :code, :citizen_id, :department_id, :original_department_id, :state, :type, :priority,
        :generated_at, :called_at, :attention_start_at, :attention_end_at, :appointment_date, :appointment_time,
        :employee_id, :notes, :redirection_reason)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, turn); err != nil {
		return fmt.Errorf("create turn: %w", err)
	}
	return nil
}

// FindByID returns a turn by its ID.
func (r *TurnRepository) FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Turn, error) {
	query := fmt.Sprintf(`SELECT %s FROM turns WHERE id = $1`, turnColumns)
	var turn models.Turn
	if err := sqlx.GetContext(ctx, q, &turn, query, id); err != nil {
		return nil, err
	}
	return &turn, nil
}

// FindByIDForUpdate loads a turn under a row lock. Concurrent lifecycle
// operations on the same turn serialise here; the loser re-reads the new
// state and fails its precondition check instead of double-applying.
func (r *TurnRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Turn, error) {
	query := fmt.Sprintf(`SELECT %s FROM turns WHERE id = $1 FOR UPDATE`, turnColumns)
	var turn models.Turn
	if err := tx.GetContext(ctx, &turn, query, id); err != nil {
		return nil, err
	}
	return &turn, nil
}

// Update persists the mutable fields of a turn.
func (r *TurnRepository) Update(ctx context.Context, q sqlx.ExtContext, turn *models.Turn) error {
	const query = `UPDATE turns SET
        department_id = :department_id,
        original_department_id = :original_department_id,
        state = :state,
        type = :type,
        priority = :priority,
        called_at = :called_at,
        attention_start_at = :attention_start_at,
        attention_end_at = :attention_end_at,
        employee_id = :employee_id,
        notes = :notes,
        redirection_reason = :redirection_reason
        WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, q, query, turn)
	if err != nil {
		return fmt.Errorf("update turn: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check turn update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ActiveQueue returns the ordered active queue for a department: priority
// descending, then FIFO by generation time, id as the final tie-break.
func (r *TurnRepository) ActiveQueue(ctx context.Context, q sqlx.ExtContext, departmentID string) ([]models.Turn, error) {
	query := fmt.Sprintf(`SELECT %s FROM turns
        WHERE department_id = $1 AND state IN ($2, $3)
        ORDER BY priority DESC, generated_at ASC, id ASC`, turnColumns)
	var turns []models.Turn
	if err := sqlx.SelectContext(ctx, q, &turns, query, departmentID, models.TurnStateGenerated, models.TurnStateRedirected); err != nil {
		return nil, fmt.Errorf("list active queue: %w", err)
	}
	return turns, nil
}

// NextInQueue returns the head of a department's active queue, or nil when
// the queue is empty.
func (r *TurnRepository) NextInQueue(ctx context.Context, q sqlx.ExtContext, departmentID string) (*models.Turn, error) {
	query := fmt.Sprintf(`SELECT %s FROM turns
        WHERE department_id = $1 AND state IN ($2, $3)
        ORDER BY priority DESC, generated_at ASC, id ASC
        LIMIT 1`, turnColumns)
	var turn models.Turn
	if err := sqlx.GetContext(ctx, q, &turn, query, departmentID, models.TurnStateGenerated, models.TurnStateRedirected); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("next in queue: %w", err)
	}
	return &turn, nil
}

// ExistsSpecialAt checks whether an appointment turn already occupies the
// exact (department, date, time) slot.
func (r *TurnRepository) ExistsSpecialAt(ctx context.Context, q sqlx.ExtContext, departmentID string, date time.Time, slot string) (bool, error) {
	const query = `SELECT 1 FROM turns
        WHERE department_id = $1 AND type = $2 AND appointment_date = $3 AND appointment_time = $4
        AND state NOT IN ($5, $6)
        LIMIT 1`
	var exists int
	err := sqlx.GetContext(ctx, q, &exists, query, departmentID, models.TurnTypeSpecial,
		date.Format("2006-01-02"), slot, models.TurnStateCancelled, models.TurnStateAbsent)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check slot occupancy: %w", err)
	}
	return true, nil
}
