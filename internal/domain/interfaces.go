package domain

import (
	"context"
	"time"

	"shiftclock/internal/models"
	"shiftclock/internal/remote"
)

// ClockQueue is the durable store of punches waiting for delivery.
type ClockQueue interface {
	AppendEntry(ctx context.Context, employeeID, employeeName string, action models.ClockAction, timestamp time.Time) (string, error)
	ListEntries(ctx context.Context) ([]models.QueuedClockEntry, error)
	CountEntries(ctx context.Context) (int, error)
	UpdateEntryAttempt(ctx context.Context, id string, attempts int, lastAttempt time.Time, lastError string) error
	RemoveEntry(ctx context.Context, id string) error
	ClearEntries(ctx context.Context) error
}

// RemoteClock is the remote time-clock service.
type RemoteClock interface {
	Toggle(ctx context.Context, req remote.ToggleRequest) (*remote.ToggleResult, error)
	GetLastEvent(ctx context.Context, employeeID string) (*models.ConfirmedEvent, error)
	Ping(ctx context.Context) error
}

// ActionCache remembers the last known punch direction per employee. It is
// the last-resort source for deciding the next action while offline.
type ActionCache interface {
	GetLastAction(ctx context.Context, employeeID string) (models.ClockAction, bool, error)
	SetLastAction(ctx context.Context, employeeID string, action models.ClockAction) error
	ClearLastAction(ctx context.Context, employeeID string) error
}

// StatusPublisher broadcasts sync status snapshots.
type StatusPublisher interface {
	Publish(event models.SyncStatusEvent)
}

// Drainer triggers a pass over the pending queue.
type Drainer interface {
	TriggerDrain()
}

// ConnectivitySource answers whether the remote service is reachable and
// notifies on transitions.
type ConnectivitySource interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}
