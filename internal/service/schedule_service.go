package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/muni-digital/turnos-api/internal/models"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type scheduleReader interface {
	BlocksForDay(ctx context.Context, q sqlx.ExtContext, departmentID string, dayOfWeek int) ([]models.ScheduleBlock, error)
}

type slotOccupancyChecker interface {
	ExistsSpecialAt(ctx context.Context, q sqlx.ExtContext, departmentID string, date time.Time, slot string) (bool, error)
}

// ScheduleService validates appointment slots against a department's weekly
// schedule. A slot is bookable when it falls on a configured block boundary
// and no other appointment turn already holds the exact same slot.
type ScheduleService struct {
	schedules scheduleReader
	turns     slotOccupancyChecker
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(schedules scheduleReader, turns slotOccupancyChecker, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		schedules: schedules,
		turns:     turns,
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateSlot checks that (date, slot) is bookable for the department.
// Callers run this inside the generation transaction so the occupancy check
// and the insert cannot interleave with a competing booking.
func (s *ScheduleService) ValidateSlot(ctx context.Context, q sqlx.ExtContext, dept *models.Department, date time.Time, slot string) error {
	slotMinutes, err := parseClock(slot)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid appointment time, expected HH:MM")
	}

	today := dateOnly(s.now())
	if dateOnly(date).Before(today) {
		return appErrors.Clone(appErrors.ErrValidation, "appointment date is in the past")
	}

	blocks, err := s.schedules.BlocksForDay(ctx, q, dept.ID, int(date.Weekday()))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department schedule")
	}
	if !matchesBlock(blocks, slotMinutes) {
		return appErrors.Clone(appErrors.ErrValidation, "appointment time does not match a bookable slot")
	}

	taken, err := s.turns.ExistsSpecialAt(ctx, q, dept.ID, date, slot)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot availability")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "appointment slot is already taken")
	}
	return nil
}

// matchesBlock reports whether the slot lands exactly on a block boundary:
// start plus a whole number of intervals, strictly before the block end.
func matchesBlock(blocks []models.ScheduleBlock, slotMinutes int) bool {
	for _, block := range blocks {
		start, err := parseClock(block.StartTime)
		if err != nil {
			continue
		}
		end, err := parseClock(block.EndTime)
		if err != nil {
			continue
		}
		interval := block.IntervalMinutes
		if interval <= 0 {
			continue
		}
		if slotMinutes < start || slotMinutes >= end {
			continue
		}
		if (slotMinutes-start)%interval == 0 {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(raw string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(raw, "%02d:%02d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", raw, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock %q out of range", raw)
	}
	return hour*60 + minute, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
