package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/pkg/config"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type auditReader interface {
	HistoryForTurn(ctx context.Context, q sqlx.ExtContext, turnID string) ([]models.AuditEntry, error)
	Recent(ctx context.Context, q sqlx.ExtContext, limit int) ([]models.AuditEntry, error)
	ListByEmployee(ctx context.Context, q sqlx.ExtContext, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// AuditService serves the read side of the audit trail. All reads are
// bounded: recent entries by a hard row cap, employee queries by a maximum
// date range.
type AuditService struct {
	db     *sqlx.DB
	audits auditReader
	cfg    config.AuditConfig
	logger *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(db *sqlx.DB, audits auditReader, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 1000
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 92
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{db: db, audits: audits, cfg: cfg, logger: logger}
}

// History returns the full ordered history of one turn, oldest first.
func (s *AuditService) History(ctx context.Context, turnID string) ([]models.AuditEntry, error) {
	if turnID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "turn id is required")
	}
	entries, err := s.audits.HistoryForTurn(ctx, s.db, turnID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load turn history")
	}
	return entries, nil
}

// Recent returns the newest entries system-wide. The limit is clamped to the
// configured cap; zero or negative asks for the cap itself.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > s.cfg.RecentLimit {
		limit = s.cfg.RecentLimit
	}
	entries, err := s.audits.Recent(ctx, s.db, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent audit entries")
	}
	return entries, nil
}

// ByEmployee returns one employee's entries within [from, to]. The window is
// rejected when inverted or wider than the configured maximum.
func (s *AuditService) ByEmployee(ctx context.Context, employeeID string, from, to time.Time, limit int) ([]models.AuditEntry, error) {
	if employeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee id is required")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}
	maxRange := time.Duration(s.cfg.MaxRangeDays) * 24 * time.Hour
	if to.Sub(from) > maxRange {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range exceeds the maximum window")
	}
	if limit <= 0 || limit > s.cfg.RecentLimit {
		limit = s.cfg.RecentLimit
	}
	entries, err := s.audits.ListByEmployee(ctx, s.db, models.AuditFilter{
		EmployeeID: employeeID,
		From:       from,
		To:         to.Add(24 * time.Hour),
		Limit:      limit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee audit entries")
	}
	return entries, nil
}
