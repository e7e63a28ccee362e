package models

import "time"

// Audit actions recorded for turn lifecycle events.
const (
	AuditActionGenerated         = "GENERATED"
	AuditActionCalled            = "CALLED"
	AuditActionAttentionStarted  = "ATTENTION_STARTED"
	AuditActionAttentionFinished = "ATTENTION_FINISHED"
	AuditActionRedirected        = "REDIRECTED"
	AuditActionMarkedAbsent      = "MARKED_ABSENT"
	AuditActionCancelled         = "CANCELLED"
	AuditActionPriorityChanged   = "PRIORITY_CHANGED"
	AuditActionStateChanged      = "STATE_CHANGED"
)

// SystemActor is reported for audit entries with no acting employee.
const SystemActor = "system"

// AuditEntry is an immutable record of a single turn lifecycle action.
// Entries are only ever inserted, never updated or deleted.
type AuditEntry struct {
	ID                      string     `db:"id" json:"id"`
	TurnID                  string     `db:"turn_id" json:"turn_id"`
	Action                  string     `db:"action" json:"action"`
	EmployeeID              *string    `db:"employee_id" json:"employee_id,omitempty"`
	BeforeState             *TurnState `db:"before_state" json:"before_state,omitempty"`
	AfterState              *TurnState `db:"after_state" json:"after_state,omitempty"`
	BeforePriority          *int       `db:"before_priority" json:"before_priority,omitempty"`
	AfterPriority           *int       `db:"after_priority" json:"after_priority,omitempty"`
	OriginDepartmentID      *string    `db:"origin_department_id" json:"origin_department_id,omitempty"`
	DestinationDepartmentID *string    `db:"destination_department_id" json:"destination_department_id,omitempty"`
	Notes                   string     `db:"notes" json:"notes,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
}

// Actor returns the employee id or the system sentinel.
func (e AuditEntry) Actor() string {
	if e.EmployeeID == nil || *e.EmployeeID == "" {
		return SystemActor
	}
	return *e.EmployeeID
}

// AuditFilter selects audit entries for the employee/date-range read path.
type AuditFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time
	Limit      int
}
