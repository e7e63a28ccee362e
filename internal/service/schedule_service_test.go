package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/models"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type stubScheduleRepo struct {
	blocks map[int][]models.ScheduleBlock
}

func (s *stubScheduleRepo) BlocksForDay(ctx context.Context, q sqlx.ExtContext, departmentID string, dayOfWeek int) ([]models.ScheduleBlock, error) {
	return s.blocks[dayOfWeek], nil
}

type stubOccupancy struct {
	taken bool
}

func (s *stubOccupancy) ExistsSpecialAt(ctx context.Context, q sqlx.ExtContext, departmentID string, date time.Time, slot string) (bool, error) {
	return s.taken, nil
}

func newScheduleFixture(taken bool) (*ScheduleService, *stubOccupancy) {
	// Tuesday blocks: morning 09:00-12:00 every 30m, afternoon 14:00-16:00 every 20m
	schedules := &stubScheduleRepo{blocks: map[int][]models.ScheduleBlock{
		int(time.Tuesday): {
			{StartTime: "09:00", EndTime: "12:00", IntervalMinutes: 30},
			{StartTime: "14:00", EndTime: "16:00", IntervalMinutes: 20},
		},
	}}
	occupancy := &stubOccupancy{taken: taken}
	svc := NewScheduleService(schedules, occupancy, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC) }
	return svc, occupancy
}

func TestValidateSlot(t *testing.T) {
	svc, _ := newScheduleFixture(false)
	dept := &models.Department{ID: "dep-a"}
	tuesday := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		slot     string
		wantCode string
	}{
		{"block start", "09:00", ""},
		{"on interval", "10:30", ""},
		{"second block interval", "14:40", ""},
		{"off interval", "09:15", appErrors.ErrValidation.Code},
		{"before opening", "08:30", appErrors.ErrValidation.Code},
		{"at block end", "12:00", appErrors.ErrValidation.Code},
		{"between blocks", "13:00", appErrors.ErrValidation.Code},
		{"malformed", "9am", appErrors.ErrValidation.Code},
		{"out of range", "25:00", appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ValidateSlot(context.Background(), nil, dept, tuesday, tc.slot)
			if tc.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestValidateSlotPastDate(t *testing.T) {
	svc, _ := newScheduleFixture(false)
	yesterday := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	err := svc.ValidateSlot(context.Background(), nil, &models.Department{ID: "dep-a"}, yesterday, "09:00")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateSlotSameDayAllowed(t *testing.T) {
	svc, _ := newScheduleFixture(false)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC) }
	sameDay := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	err := svc.ValidateSlot(context.Background(), nil, &models.Department{ID: "dep-a"}, sameDay, "09:30")
	assert.NoError(t, err)
}

func TestValidateSlotTaken(t *testing.T) {
	svc, _ := newScheduleFixture(true)
	tuesday := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	err := svc.ValidateSlot(context.Background(), nil, &models.Department{ID: "dep-a"}, tuesday, "09:00")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestValidateSlotDayWithoutSchedule(t *testing.T) {
	svc, _ := newScheduleFixture(false)
	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)

	err := svc.ValidateSlot(context.Background(), nil, &models.Department{ID: "dep-a"}, sunday, "09:00")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
