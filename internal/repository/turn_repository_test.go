package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func turnRows(turns ...models.Turn) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "code", "citizen_id", "department_id", "original_department_id",
		"state", "type", "priority", "generated_at", "called_at", "attention_start_at", "attention_end_at",
		"appointment_date", "appointment_time", "employee_id", "notes", "redirection_reason"})
	for _, t := range turns {
		rows.AddRow(t.ID, t.Code, t.CitizenID, t.DepartmentID, t.OriginalDepartmentID,
			string(t.State), string(t.Type), t.Priority, t.GeneratedAt, t.CalledAt, t.AttentionStartAt,
			t.AttentionEndAt, t.AppointmentDate, t.AppointmentTime, t.EmployeeID, t.Notes, t.RedirectionReason)
	}
	return rows
}

func TestNextCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)
	day := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO turn_code_sequences (department_id, seq_date, last_number) VALUES ($1, $2, 1) ON CONFLICT (department_id, seq_date) DO UPDATE SET last_number = turn_code_sequences.last_number + 1 RETURNING last_number")).
		WithArgs("dep-1", "2026-08-31").
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(7))

	code, err := repo.NextCode(context.Background(), db, "dep-1", "REG", day)
	require.NoError(t, err)
	assert.Equal(t, "REG007", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTurnAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)

	mock.ExpectExec("INSERT INTO turns").WillReturnResult(sqlmock.NewResult(1, 1))

	turn := &models.Turn{Code: "REG001", CitizenID: "cit-1", DepartmentID: "dep-1",
		State: models.TurnStateGenerated, Type: models.TurnTypeNormal}
	err := repo.Create(context.Background(), db, turn)
	require.NoError(t, err)
	assert.NotEmpty(t, turn.ID)
	assert.False(t, turn.GeneratedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTurnByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM turns WHERE id = \\$1").
		WithArgs("turn-1").
		WillReturnRows(turnRows(models.Turn{
			ID: "turn-1", Code: "REG001", CitizenID: "cit-1", DepartmentID: "dep-1",
			State: models.TurnStateGenerated, Type: models.TurnTypeNormal, GeneratedAt: now,
		}))

	turn, err := repo.FindByID(context.Background(), db, "turn-1")
	require.NoError(t, err)
	assert.Equal(t, "REG001", turn.Code)
	assert.Equal(t, models.TurnStateGenerated, turn.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTurnMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)

	mock.ExpectExec("UPDATE turns SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), db, &models.Turn{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveQueueOrdering(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY priority DESC, generated_at ASC, id ASC")).
		WithArgs("dep-1", string(models.TurnStateGenerated), string(models.TurnStateRedirected)).
		WillReturnRows(turnRows(
			models.Turn{ID: "turn-2", Priority: 10, State: models.TurnStateGenerated, GeneratedAt: now},
			models.Turn{ID: "turn-1", Priority: 0, State: models.TurnStateGenerated, GeneratedAt: now.Add(-time.Hour)},
		))

	turns, err := repo.ActiveQueue(context.Background(), db, "dep-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "turn-2", turns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextInQueueEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM turns").
		WithArgs("dep-1", string(models.TurnStateGenerated), string(models.TurnStateRedirected)).
		WillReturnError(sql.ErrNoRows)

	turn, err := repo.NextInQueue(context.Background(), db, "dep-1")
	require.NoError(t, err)
	assert.Nil(t, turn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsSpecialAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTurnRepository(db)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT 1 FROM turns").
		WithArgs("dep-1", string(models.TurnTypeSpecial), "2026-09-01", "09:30",
			string(models.TurnStateCancelled), string(models.TurnStateAbsent)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	taken, err := repo.ExistsSpecialAt(context.Background(), db, "dep-1", day, "09:30")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery("SELECT 1 FROM turns").WillReturnError(sql.ErrNoRows)
	taken, err = repo.ExistsSpecialAt(context.Background(), db, "dep-1", day, "10:00")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
