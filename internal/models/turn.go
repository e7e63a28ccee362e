package models

import "time"

// TurnState is the lifecycle state of a turn.
type TurnState string

const (
	TurnStateGenerated   TurnState = "GENERATED"
	TurnStateCalled      TurnState = "CALLED"
	TurnStateInAttention TurnState = "IN_ATTENTION"
	TurnStateRedirected  TurnState = "REDIRECTED"
	TurnStateFinished    TurnState = "FINISHED"
	TurnStateAbsent      TurnState = "ABSENT"
	TurnStateCancelled   TurnState = "CANCELLED"
)

// TurnType tags how a turn entered the system.
type TurnType string

const (
	TurnTypeNormal     TurnType = "NORMAL"
	TurnTypePriority   TurnType = "PRIORITY"
	TurnTypeSpecial    TurnType = "SPECIAL"
	TurnTypeRedirected TurnType = "REDIRECTED"
	TurnTypeUrgent     TurnType = "URGENT"
)

// Priority bounds for turns.
const (
	MinPriority = 0
	MaxPriority = 10
)

// Turn represents a citizen's service request tracked from creation to a
// terminal outcome.
type Turn struct {
	ID                   string     `db:"id" json:"id"`
	Code                 string     `db:"code" json:"code"`
	CitizenID            string     `db:"citizen_id" json:"citizen_id"`
	DepartmentID         string     `db:"department_id" json:"department_id"`
	OriginalDepartmentID *string    `db:"original_department_id" json:"original_department_id,omitempty"`
	State                TurnState  `db:"state" json:"state"`
	Type                 TurnType   `db:"type" json:"type"`
	Priority             int        `db:"priority" json:"priority"`
	GeneratedAt          time.Time  `db:"generated_at" json:"generated_at"`
	CalledAt             *time.Time `db:"called_at" json:"called_at,omitempty"`
	AttentionStartAt     *time.Time `db:"attention_start_at" json:"attention_start_at,omitempty"`
	AttentionEndAt       *time.Time `db:"attention_end_at" json:"attention_end_at,omitempty"`
	AppointmentDate      *time.Time `db:"appointment_date" json:"appointment_date,omitempty"`
	AppointmentTime      *string    `db:"appointment_time" json:"appointment_time,omitempty"`
	EmployeeID           *string    `db:"employee_id" json:"employee_id,omitempty"`
	Notes                string     `db:"notes" json:"notes,omitempty"`
	RedirectionReason    string     `db:"redirection_reason" json:"redirection_reason,omitempty"`
}

// IsTerminal reports whether the state admits no further transitions.
func (s TurnState) IsTerminal() bool {
	switch s {
	case TurnStateFinished, TurnStateAbsent, TurnStateCancelled:
		return true
	}
	return false
}

// IsActive is the complement of IsTerminal.
func (s TurnState) IsActive() bool {
	return !s.IsTerminal()
}

// IsQueued reports whether the turn is waiting in a department queue.
func (s TurnState) IsQueued() bool {
	return s == TurnStateGenerated || s == TurnStateRedirected
}

// callableStates lists the source states each staff action accepts. Absent,
// redirect and cancel accept any active state and are checked via IsActive.
var callableStates = map[TurnState][]TurnState{
	TurnStateCalled:      {TurnStateGenerated, TurnStateRedirected},
	TurnStateInAttention: {TurnStateCalled},
	TurnStateFinished:    {TurnStateInAttention},
}

// CanTransition reports whether a turn in state from may move to target.
func CanTransition(from, target TurnState) bool {
	switch target {
	case TurnStateAbsent, TurnStateCancelled, TurnStateRedirected:
		return from.IsActive()
	}
	allowed, ok := callableStates[target]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == from {
			return true
		}
	}
	return false
}

// ExpectedStates returns the states a transition to target accepts, for error
// reporting.
func ExpectedStates(target TurnState) []TurnState {
	switch target {
	case TurnStateAbsent, TurnStateCancelled, TurnStateRedirected:
		return []TurnState{TurnStateGenerated, TurnStateCalled, TurnStateInAttention, TurnStateRedirected}
	}
	return callableStates[target]
}

// ClampPriority bounds a priority value to [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// InitialPriority computes the priority a freshly generated turn receives.
func InitialPriority(turnType TurnType, citizenHasPriority bool) int {
	switch {
	case turnType == TurnTypeUrgent:
		return 10
	case turnType == TurnTypeRedirected:
		return 3
	case turnType == TurnTypePriority || citizenHasPriority:
		return 2
	}
	return 0
}
