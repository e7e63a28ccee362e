package models

import "time"

// Turn event kinds emitted after commit.
const (
	EventTurnGenerated  = "turn.generated"
	EventTurnCalled     = "turn.called"
	EventTurnInProgress = "turn.in_attention"
	EventTurnFinished   = "turn.finished"
	EventTurnAbsent     = "turn.absent"
	EventTurnRedirected = "turn.redirected"
	EventTurnCancelled  = "turn.cancelled"
)

// TurnEvent is the small descriptor delivered to display subscribers. It is a
// cue to re-fetch authoritative state, not a data feed.
type TurnEvent struct {
	Kind         string    `json:"kind"`
	TurnID       string    `json:"turn_id"`
	Code         string    `json:"code"`
	DepartmentID string    `json:"department_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}
