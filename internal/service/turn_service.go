package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/internal/repository"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type turnRepo interface {
	NextCode(ctx context.Context, q sqlx.ExtContext, departmentID, departmentCode string, day time.Time) (string, error)
	Create(ctx context.Context, q sqlx.ExtContext, turn *models.Turn) error
	FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Turn, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Turn, error)
	Update(ctx context.Context, q sqlx.ExtContext, turn *models.Turn) error
	ActiveQueue(ctx context.Context, q sqlx.ExtContext, departmentID string) ([]models.Turn, error)
	NextInQueue(ctx context.Context, q sqlx.ExtContext, departmentID string) (*models.Turn, error)
}

type auditRecorder interface {
	Record(ctx context.Context, q sqlx.ExtContext, entry *models.AuditEntry) error
}

type statsUpdater interface {
	IncrementGenerated(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string, hour int) error
	IncrementAttended(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID string, waitMinutes, serviceMinutes int) error
	IncrementCounter(ctx context.Context, q sqlx.ExtContext, date time.Time, departmentID, employeeID, counter string) error
}

type citizenReader interface {
	FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Citizen, error)
}

type departmentReader interface {
	FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Department, error)
	ListActive(ctx context.Context, q sqlx.ExtContext) ([]models.Department, error)
}

type employeeReader interface {
	FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Employee, error)
}

type slotChecker interface {
	ValidateSlot(ctx context.Context, q sqlx.ExtContext, dept *models.Department, date time.Time, slot string) error
}

type eventDispatcher interface {
	Dispatch(events []models.TurnEvent)
}

// GenerateTurnRequest creates a new turn in a department's queue.
type GenerateTurnRequest struct {
	CitizenID       string `json:"citizen_id" validate:"required"`
	DepartmentID    string `json:"department_id" validate:"required"`
	Type            string `json:"type" validate:"omitempty,oneof=NORMAL PRIORITY SPECIAL URGENT"`
	Notes           string `json:"notes" validate:"max=500"`
	AppointmentDate string `json:"appointment_date" validate:"omitempty,datetime=2006-01-02"`
	AppointmentTime string `json:"appointment_time" validate:"omitempty,len=5"`
}

// RedirectTurnRequest moves a turn to another department's queue.
type RedirectTurnRequest struct {
	TargetDepartmentID string `json:"target_department_id" validate:"required"`
	Reason             string `json:"reason" validate:"required,max=500"`
}

// CancelTurnRequest voids a turn before attention.
type CancelTurnRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// TurnService orchestrates the turn lifecycle. Each mutating operation runs
// one transaction covering the turn row and its audit entry; stats upserts
// and display events run only after commit. Stats are best-effort auxiliary
// data: a failed upsert is logged and never unwinds the committed
// transition, the audit trail remains the recoverable source of truth.
type TurnService struct {
	db          *sqlx.DB
	turns       turnRepo
	audits      auditRecorder
	stats       statsUpdater
	citizens    citizenReader
	departments departmentReader
	employees   employeeReader
	slots       slotChecker
	dispatcher  eventDispatcher
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewTurnService constructs TurnService.
func NewTurnService(db *sqlx.DB, turns turnRepo, audits auditRecorder, stats statsUpdater,
	citizens citizenReader, departments departmentReader, employees employeeReader,
	slots slotChecker, dispatcher eventDispatcher,
	validate *validator.Validate, logger *zap.Logger) *TurnService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnService{
		db:          db,
		turns:       turns,
		audits:      audits,
		stats:       stats,
		citizens:    citizens,
		departments: departments,
		employees:   employees,
		slots:       slots,
		dispatcher:  dispatcher,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Generate creates a turn, assigns its daily code and places it in the queue.
// actorID is empty for kiosk self-service.
func (s *TurnService) Generate(ctx context.Context, req GenerateTurnRequest, actorID string) (*models.Turn, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid turn payload")
	}
	turnType := models.TurnType(strings.ToUpper(req.Type))
	if turnType == "" {
		turnType = models.TurnTypeNormal
	}

	citizen, err := s.citizens.FindByID(ctx, s.db, req.CitizenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "citizen not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load citizen")
	}
	if !citizen.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "citizen is inactive")
	}
	dept, err := s.loadDepartment(ctx, s.db, req.DepartmentID)
	if err != nil {
		return nil, err
	}
	if dept.RequiresAppointment && turnType != models.TurnTypeSpecial {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "department accepts appointment turns only")
	}

	var appointmentDate *time.Time
	var appointmentTime *string
	if turnType == models.TurnTypeSpecial {
		if req.AppointmentDate == "" || req.AppointmentTime == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "appointment date and time are required for special turns")
		}
		date, err := time.ParseInLocation("2006-01-02", req.AppointmentDate, s.now().Location())
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid appointment date")
		}
		appointmentDate = &date
		appointmentTime = &req.AppointmentTime
	} else if req.AppointmentDate != "" || req.AppointmentTime != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointments are only valid for special turns")
	}

	now := s.now()
	turn := &models.Turn{
		CitizenID:       citizen.ID,
		DepartmentID:    dept.ID,
		State:           models.TurnStateGenerated,
		Type:            turnType,
		Priority:        models.InitialPriority(turnType, citizen.HasPriority),
		GeneratedAt:     now,
		AppointmentDate: appointmentDate,
		AppointmentTime: appointmentTime,
		Notes:           req.Notes,
	}

	var events []models.TurnEvent
	err = repository.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if turnType == models.TurnTypeSpecial {
			if err := s.slots.ValidateSlot(ctx, tx, dept, *appointmentDate, *appointmentTime); err != nil {
				return err
			}
		}
		code, err := s.turns.NextCode(ctx, tx, dept.ID, dept.Code, now)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign turn code")
		}
		turn.Code = code
		if err := s.turns.Create(ctx, tx, turn); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create turn")
		}
		entry := &models.AuditEntry{
			TurnID:        turn.ID,
			Action:        models.AuditActionGenerated,
			EmployeeID:    optionalID(actorID),
			AfterState:    statePtr(models.TurnStateGenerated),
			AfterPriority: intPtr(turn.Priority),
			Notes:         req.Notes,
			CreatedAt:     now,
		}
		if err := s.audits.Record(ctx, tx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit entry")
		}
		events = append(events, s.event(models.EventTurnGenerated, turn))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.applyStats(ctx, dept.ID, actorID, func(employeeID string) error {
		return s.stats.IncrementGenerated(ctx, s.db, now, dept.ID, employeeID, now.Hour())
	})
	s.dispatcher.Dispatch(events)
	s.logger.Info("turn generated",
		zap.String("turn_id", turn.ID),
		zap.String("code", turn.Code),
		zap.String("department_id", dept.ID))
	return turn, nil
}

// Call announces a turn at a counter. The queue head ordering is advisory;
// any queued turn of the department may be called.
func (s *TurnService) Call(ctx context.Context, turnID, actorID, notes string) (*models.Turn, error) {
	return s.transition(ctx, turnID, actorID, models.TurnStateCalled, models.AuditActionCalled, models.EventTurnCalled, notes,
		func(turn *models.Turn, now time.Time) {
			turn.CalledAt = &now
			turn.EmployeeID = optionalID(actorID)
		}, nil)
}

// StartAttention begins serving a called turn.
func (s *TurnService) StartAttention(ctx context.Context, turnID, actorID, notes string) (*models.Turn, error) {
	return s.transition(ctx, turnID, actorID, models.TurnStateInAttention, models.AuditActionAttentionStarted, models.EventTurnInProgress, notes,
		func(turn *models.Turn, now time.Time) {
			turn.AttentionStartAt = &now
		}, nil)
}

// Finish completes attention and folds wait and service durations into the
// daily aggregates.
func (s *TurnService) Finish(ctx context.Context, turnID, actorID, notes string) (*models.Turn, error) {
	return s.transition(ctx, turnID, actorID, models.TurnStateFinished, models.AuditActionAttentionFinished, models.EventTurnFinished, notes,
		func(turn *models.Turn, now time.Time) {
			turn.AttentionEndAt = &now
		},
		func(ctx context.Context, turn *models.Turn, now time.Time) {
			wait := 0
			if turn.CalledAt != nil {
				wait = wholeMinutes(turn.GeneratedAt, *turn.CalledAt)
			}
			service := 0
			if turn.AttentionStartAt != nil {
				service = wholeMinutes(*turn.AttentionStartAt, now)
			}
			s.applyStats(ctx, turn.DepartmentID, actorID, func(employeeID string) error {
				return s.stats.IncrementAttended(ctx, s.db, now, turn.DepartmentID, employeeID, wait, service)
			})
		})
}

// MarkAbsent records that a called citizen did not show up at the counter.
func (s *TurnService) MarkAbsent(ctx context.Context, turnID, actorID, notes string) (*models.Turn, error) {
	return s.transition(ctx, turnID, actorID, models.TurnStateAbsent, models.AuditActionMarkedAbsent, models.EventTurnAbsent, notes,
		nil,
		func(ctx context.Context, turn *models.Turn, now time.Time) {
			s.applyStats(ctx, turn.DepartmentID, actorID, func(employeeID string) error {
				return s.stats.IncrementCounter(ctx, s.db, now, turn.DepartmentID, employeeID, "absent")
			})
		})
}

// Cancel voids a turn. An empty actorID is the citizen cancelling at the
// kiosk, which skips the department authorization check.
func (s *TurnService) Cancel(ctx context.Context, turnID, actorID string, req CancelTurnRequest) (*models.Turn, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	return s.transition(ctx, turnID, actorID, models.TurnStateCancelled, models.AuditActionCancelled, models.EventTurnCancelled, req.Reason,
		nil,
		func(ctx context.Context, turn *models.Turn, now time.Time) {
			s.applyStats(ctx, turn.DepartmentID, actorID, func(employeeID string) error {
				return s.stats.IncrementCounter(ctx, s.db, now, turn.DepartmentID, employeeID, "cancelled")
			})
		})
}

// Redirect moves an active turn to another department. The origin department
// is recorded once and never overwritten, so a twice-redirected turn still
// knows where it started.
func (s *TurnService) Redirect(ctx context.Context, turnID string, req RedirectTurnRequest, actorID string) (*models.Turn, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redirect payload")
	}
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadDepartment(ctx, s.db, req.TargetDepartmentID)
	if err != nil {
		return nil, err
	}

	var result *models.Turn
	var events []models.TurnEvent
	var statsOrigin string
	err = repository.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		turn, err := s.lockTurn(ctx, tx, turnID)
		if err != nil {
			return err
		}
		if turn.DepartmentID == target.ID {
			return appErrors.Clone(appErrors.ErrValidation, "turn is already in the target department")
		}
		if err := s.authorize(ctx, tx, actor, turn.DepartmentID); err != nil {
			return err
		}
		if !models.CanTransition(turn.State, models.TurnStateRedirected) {
			return appErrors.InvalidState(expectedList(models.TurnStateRedirected), string(turn.State))
		}

		now := s.now()
		origin := turn.DepartmentID
		statsOrigin = origin
		before := turn.State
		beforePriority := turn.Priority
		if turn.OriginalDepartmentID == nil {
			turn.OriginalDepartmentID = &origin
		}
		turn.DepartmentID = target.ID
		turn.State = models.TurnStateRedirected
		turn.Type = models.TurnTypeRedirected
		turn.Priority = models.ClampPriority(maxInt(turn.Priority, 1))
		turn.EmployeeID = nil
		turn.CalledAt = nil
		turn.RedirectionReason = req.Reason

		if err := s.turns.Update(ctx, tx, turn); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update turn")
		}
		entry := &models.AuditEntry{
			TurnID:                  turn.ID,
			Action:                  models.AuditActionRedirected,
			EmployeeID:              optionalID(actorID),
			BeforeState:             statePtr(before),
			AfterState:              statePtr(models.TurnStateRedirected),
			BeforePriority:          intPtr(beforePriority),
			AfterPriority:           intPtr(turn.Priority),
			OriginDepartmentID:      &origin,
			DestinationDepartmentID: &target.ID,
			Notes:                   req.Reason,
			CreatedAt:               now,
		}
		if err := s.audits.Record(ctx, tx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit entry")
		}
		result = turn
		events = append(events, s.event(models.EventTurnRedirected, turn))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.applyStats(ctx, statsOrigin, actorID, func(employeeID string) error {
		return s.stats.IncrementCounter(ctx, s.db, s.now(), statsOrigin, employeeID, "redirected")
	})
	s.dispatcher.Dispatch(events)
	s.logger.Info("turn redirected",
		zap.String("turn_id", result.ID),
		zap.String("target_department_id", target.ID))
	return result, nil
}

// Get returns a single turn.
func (s *TurnService) Get(ctx context.Context, turnID string) (*models.Turn, error) {
	turn, err := s.turns.FindByID(ctx, s.db, turnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "turn not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load turn")
	}
	return turn, nil
}

// Queue returns a department's active queue in call order.
func (s *TurnService) Queue(ctx context.Context, departmentID string) ([]models.Turn, error) {
	if _, err := s.loadDepartment(ctx, s.db, departmentID); err != nil {
		return nil, err
	}
	turns, err := s.turns.ActiveQueue(ctx, s.db, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queue")
	}
	return turns, nil
}

// Departments returns the active departments for the public display index.
func (s *TurnService) Departments(ctx context.Context) ([]models.Department, error) {
	depts, err := s.departments.ListActive(ctx, s.db)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return depts, nil
}

// Next returns the head of a department's queue without mutating it, or nil
// when the queue is empty.
func (s *TurnService) Next(ctx context.Context, departmentID string) (*models.Turn, error) {
	if _, err := s.loadDepartment(ctx, s.db, departmentID); err != nil {
		return nil, err
	}
	turn, err := s.turns.NextInQueue(ctx, s.db, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to peek queue")
	}
	return turn, nil
}

type mutateFn func(turn *models.Turn, now time.Time)

type statsFn func(ctx context.Context, turn *models.Turn, now time.Time)

// transition is the shared skeleton for single-turn state changes: lock the
// row, check authorization and the guard, mutate, audit, commit, then apply
// best-effort stats and hand the event to the dispatcher.
func (s *TurnService) transition(ctx context.Context, turnID, actorID string,
	target models.TurnState, action, eventKind, notes string,
	mutate mutateFn, updateStats statsFn) (*models.Turn, error) {

	var actor *models.Employee
	if actorID != "" {
		loaded, err := s.loadActor(ctx, actorID)
		if err != nil {
			return nil, err
		}
		actor = loaded
	} else if target != models.TurnStateCancelled {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "employee authentication required")
	}

	var result *models.Turn
	var events []models.TurnEvent
	var committedAt time.Time
	err := repository.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		turn, err := s.lockTurn(ctx, tx, turnID)
		if err != nil {
			return err
		}
		if actor != nil {
			if err := s.authorize(ctx, tx, actor, turn.DepartmentID); err != nil {
				return err
			}
		}
		if !models.CanTransition(turn.State, target) {
			return appErrors.InvalidState(expectedList(target), string(turn.State))
		}
		if target == models.TurnStateFinished && turn.EmployeeID == nil {
			return appErrors.Clone(appErrors.ErrInvalidState, "turn has no assigned employee")
		}

		now := s.now()
		committedAt = now
		before := turn.State
		turn.State = target
		if mutate != nil {
			mutate(turn, now)
		}
		if err := s.turns.Update(ctx, tx, turn); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update turn")
		}
		entry := &models.AuditEntry{
			TurnID:      turn.ID,
			Action:      action,
			EmployeeID:  optionalID(actorID),
			BeforeState: statePtr(before),
			AfterState:  statePtr(target),
			Notes:       notes,
			CreatedAt:   now,
		}
		if err := s.audits.Record(ctx, tx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit entry")
		}
		result = turn
		events = append(events, s.event(eventKind, turn))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updateStats != nil {
		updateStats(ctx, result, committedAt)
	}
	s.dispatcher.Dispatch(events)
	return result, nil
}

func (s *TurnService) lockTurn(ctx context.Context, tx *sqlx.Tx, turnID string) (*models.Turn, error) {
	turn, err := s.turns.FindByIDForUpdate(ctx, tx, turnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "turn not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load turn")
	}
	return turn, nil
}

func (s *TurnService) loadDepartment(ctx context.Context, q sqlx.ExtContext, id string) (*models.Department, error) {
	dept, err := s.departments.FindByID(ctx, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if !dept.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "department is inactive")
	}
	return dept, nil
}

func (s *TurnService) loadActor(ctx context.Context, actorID string) (*models.Employee, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "employee authentication required")
	}
	actor, err := s.employees.FindByID(ctx, s.db, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown employee")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !actor.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "employee account disabled")
	}
	return actor, nil
}

func (s *TurnService) authorize(ctx context.Context, q sqlx.ExtContext, actor *models.Employee, departmentID string) error {
	dept, err := s.departments.FindByID(ctx, q, departmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if !actor.CanActOn(*dept) {
		return appErrors.Clone(appErrors.ErrForbidden, "employee may not act on this department")
	}
	return nil
}

// applyStats updates the department-wide aggregate row and, when an employee
// acted, the per-employee row with the same increment. Failures are logged,
// never returned: the committed transition stands and the audit trail keeps
// the data recoverable.
func (s *TurnService) applyStats(ctx context.Context, departmentID, actorID string,
	apply func(employeeID string) error) {
	if err := apply(""); err != nil {
		s.logger.Warn("failed to update department stats",
			zap.String("department_id", departmentID),
			zap.Error(err))
	}
	if actorID == "" {
		return
	}
	if err := apply(actorID); err != nil {
		s.logger.Warn("failed to update employee stats",
			zap.String("department_id", departmentID),
			zap.String("employee_id", actorID),
			zap.Error(err))
	}
}

func (s *TurnService) event(kind string, turn *models.Turn) models.TurnEvent {
	return models.TurnEvent{
		Kind:         kind,
		TurnID:       turn.ID,
		Code:         turn.Code,
		DepartmentID: turn.DepartmentID,
		OccurredAt:   s.now(),
	}
}

func expectedList(target models.TurnState) string {
	states := models.ExpectedStates(target)
	parts := make([]string, len(states))
	for i, state := range states {
		parts[i] = string(state)
	}
	return strings.Join(parts, " or ")
}

// wholeMinutes returns the elapsed whole minutes, clamped at zero so clock
// skew between recorded timestamps never produces negative durations.
func wholeMinutes(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func statePtr(state models.TurnState) *models.TurnState {
	return &state
}

func intPtr(v int) *int {
	return &v
}
