package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/models"
)

func auditRows(entries ...models.AuditEntry) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "turn_id", "action", "employee_id", "before_state", "after_state",
		"before_priority", "after_priority", "origin_department_id", "destination_department_id", "notes", "created_at"})
	for _, e := range entries {
		rows.AddRow(e.ID, e.TurnID, e.Action, e.EmployeeID, e.BeforeState, e.AfterState,
			e.BeforePriority, e.AfterPriority, e.OriginDepartmentID, e.DestinationDepartmentID, e.Notes, e.CreatedAt)
	}
	return rows
}

func TestRecordAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO turn_audit_entries").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditEntry{TurnID: "turn-1", Action: models.AuditActionGenerated}
	err := repo.Record(context.Background(), db, entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryForTurn(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE turn_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("turn-1").
		WillReturnRows(auditRows(
			models.AuditEntry{ID: "a-1", TurnID: "turn-1", Action: models.AuditActionGenerated, CreatedAt: now.Add(-time.Minute)},
			models.AuditEntry{ID: "a-2", TurnID: "turn-1", Action: models.AuditActionCalled, CreatedAt: now},
		))

	entries, err := repo.HistoryForTurn(context.Background(), db, "turn-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionGenerated, entries[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentAppliesLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(auditRows())

	entries, err := repo.Recent(context.Background(), db, 50)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByEmployee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE employee_id = $1 AND created_at >= $2 AND created_at < $3")).
		WithArgs("emp-1", from, to, 100).
		WillReturnRows(auditRows())

	_, err := repo.ListByEmployee(context.Background(), db, models.AuditFilter{
		EmployeeID: "emp-1", From: from, To: to, Limit: 100,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
