package models

import "time"

// ClockAction is the direction of a punch.
type ClockAction string

const (
	ActionIn  ClockAction = "in"
	ActionOut ClockAction = "out"
)

// Flip returns the opposite action.
func (a ClockAction) Flip() ClockAction {
	if a == ActionIn {
		return ActionOut
	}
	return ActionIn
}

// Valid reports whether the action is one of the two known directions.
func (a ClockAction) Valid() bool {
	return a == ActionIn || a == ActionOut
}

// ConfirmedEvent is a punch recorded by the remote system. ServerID is the
// durable identifier assigned remotely.
type ConfirmedEvent struct {
	ServerID   string      `json:"server_id"`
	EmployeeID string      `json:"employee_id"`
	EventType  ClockAction `json:"event_type"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PendingEvent is a punch saved locally while offline. LocalID is the queue
// entry id and must never be treated as a server id.
type PendingEvent struct {
	LocalID    string      `json:"local_id"`
	EmployeeID string      `json:"employee_id"`
	EventType  ClockAction `json:"event_type"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ClockActionResult is what a terminal gets back from one punch attempt.
// On success exactly one of Confirmed or Pending is set: Confirmed when the
// remote call went through, Pending when the punch was queued offline.
type ClockActionResult struct {
	Success   bool            `json:"success"`
	Offline   bool            `json:"offline"`
	Message   string          `json:"message"`
	Confirmed *ConfirmedEvent `json:"confirmed,omitempty"`
	Pending   *PendingEvent   `json:"pending,omitempty"`
}
