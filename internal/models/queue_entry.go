package models

import "time"

// QueuedClockEntry is a punch waiting to be delivered to the remote system.
type QueuedClockEntry struct {
	ID             string      `json:"id"`
	EmployeeID     string      `json:"employee_id"`
	EmployeeName   string      `json:"employee_name"`
	ExpectedAction ClockAction `json:"expected_action"`
	Timestamp      time.Time   `json:"timestamp"`
	Attempts       int         `json:"attempts"`
	LastAttempt    time.Time   `json:"last_attempt"`
	LastError      *string     `json:"last_error,omitempty"`
}

// AsPendingEvent shapes the entry as the optimistic event returned to the
// terminal while the punch is still unconfirmed.
func (e *QueuedClockEntry) AsPendingEvent() *PendingEvent {
	return &PendingEvent{
		LocalID:    e.ID,
		EmployeeID: e.EmployeeID,
		EventType:  e.ExpectedAction,
		Timestamp:  e.Timestamp,
	}
}
