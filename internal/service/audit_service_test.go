package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/pkg/config"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type memAuditReader struct {
	entries    []models.AuditEntry
	lastLimit  int
	lastFilter models.AuditFilter
}

func (m *memAuditReader) HistoryForTurn(ctx context.Context, q sqlx.ExtContext, turnID string) ([]models.AuditEntry, error) {
	var result []models.AuditEntry
	for _, entry := range m.entries {
		if entry.TurnID == turnID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (m *memAuditReader) Recent(ctx context.Context, q sqlx.ExtContext, limit int) ([]models.AuditEntry, error) {
	m.lastLimit = limit
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[:limit], nil
}

func (m *memAuditReader) ListByEmployee(ctx context.Context, q sqlx.ExtContext, filter models.AuditFilter) ([]models.AuditEntry, error) {
	m.lastFilter = filter
	return nil, nil
}

func newAuditFixture(entries []models.AuditEntry) (*AuditService, *memAuditReader) {
	reader := &memAuditReader{entries: entries}
	svc := NewAuditService(nil, reader, config.AuditConfig{RecentLimit: 100, MaxRangeDays: 31}, nil)
	return svc, reader
}

func TestAuditHistory(t *testing.T) {
	svc, _ := newAuditFixture([]models.AuditEntry{
		{TurnID: "turn-1", Action: models.AuditActionGenerated},
		{TurnID: "turn-2", Action: models.AuditActionGenerated},
		{TurnID: "turn-1", Action: models.AuditActionCalled},
	})

	entries, err := svc.History(context.Background(), "turn-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionGenerated, entries[0].Action)
	assert.Equal(t, models.AuditActionCalled, entries[1].Action)
}

func TestAuditHistoryRequiresTurnID(t *testing.T) {
	svc, _ := newAuditFixture(nil)

	_, err := svc.History(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuditRecentClampsLimit(t *testing.T) {
	svc, reader := newAuditFixture(nil)

	_, err := svc.Recent(context.Background(), 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, reader.lastLimit)

	_, err = svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, reader.lastLimit)

	_, err = svc.Recent(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, reader.lastLimit)
}

func TestAuditByEmployeeRange(t *testing.T) {
	svc, reader := newAuditFixture(nil)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.ByEmployee(context.Background(), "emp-1", from, to, 10)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", reader.lastFilter.EmployeeID)
	assert.Equal(t, from, reader.lastFilter.From)
	// the end date itself is included, so the upper bound is the next day
	assert.Equal(t, to.Add(24*time.Hour), reader.lastFilter.To)
	assert.Equal(t, 10, reader.lastFilter.Limit)
}

func TestAuditByEmployeeInvalidRanges(t *testing.T) {
	svc, _ := newAuditFixture(nil)
	from := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.ByEmployee(context.Background(), "emp-1", from, from.AddDate(0, 0, -1), 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ByEmployee(context.Background(), "emp-1", from, from.AddDate(0, 0, 40), 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ByEmployee(context.Background(), "", from, from, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
