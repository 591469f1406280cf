package models

// SyncStatus is the coarse state of the background sync manager.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// SyncStatusEvent is an ephemeral snapshot broadcast to subscribers. Each
// emission is independent; listeners that miss one recover from the next.
type SyncStatusEvent struct {
	Status     SyncStatus `json:"status"`
	QueueCount int        `json:"queue_count"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}
