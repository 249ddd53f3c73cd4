package tender

import "time"

// SyncState is the lifecycle state of the synchronization workflow.
type SyncState string

const (
	SyncIdle      SyncState = "idle"
	SyncRunning   SyncState = "running"
	SyncCompleted SyncState = "completed"
	SyncError     SyncState = "error"
)

// SyncStatus describes the last synchronization run. It lives only in
// process memory and is reset on restart.
type SyncStatus struct {
	LastSync     *time.Time `json:"last_sync,omitempty"`
	TotalSynced  int        `json:"total_synced"`
	NewNotices   int        `json:"new_notices"`
	Status       SyncState  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
