package models

import "time"

// Citizen is the requester of a turn; may carry a standing priority flag
// (elderly, disability, pregnancy) that raises initial turn priority.
type Citizen struct {
	ID          string    `db:"id" json:"id"`
	Document    string    `db:"document" json:"document"`
	FullName    string    `db:"full_name" json:"full_name"`
	HasPriority bool      `db:"has_priority" json:"has_priority"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
