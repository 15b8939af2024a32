package core

import "time"

// Well-known notification types emitted by SyncMesh components. Subscribers
// may also use NotifyAll to receive every type.
const (
	// NotifyAll is the wildcard subscription type.
	NotifyAll = "*"

	NotifyDeadlockDetected    = "deadlock_detected"
	NotifyDeadlockResolved    = "deadlock_resolved"
	NotifyWorkstreamAborted   = "workstream_aborted"
	NotifySyncPointCompleted  = "sync_point_completed"
	NotifyConflictDetected    = "conflict_detected"
	NotifyConflictResolved    = "conflict_resolved"
	NotifyTransactionFinished = "transaction_finished"
	NotifyWorkstreamCleanup   = "workstream_cleanup"
)

// Notification is the unit of fan-out delivered to subscribers. After
// publication it should be treated as immutable.
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewNotification creates a notification of the given type authored by source.
func NewNotification(notifType, source string, payload map[string]any) Notification {
	return Notification{
		ID:        NewID(),
		Type:      notifType,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
