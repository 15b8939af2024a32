package core

import "time"

// PartialSyncStatus is the lifecycle state of a partial-synchronization point.
// The status is monotonic: once a terminal state is reached it never changes.
type PartialSyncStatus string

const (
	// PartialSyncWaiting indicates the point is still collecting arrivals.
	PartialSyncWaiting PartialSyncStatus = "WAITING"
	// PartialSyncComplete indicates every expected workstream arrived.
	PartialSyncComplete PartialSyncStatus = "COMPLETE"
	// PartialSyncPartialComplete indicates the minimum/required conditions
	// were met without full attendance.
	PartialSyncPartialComplete PartialSyncStatus = "PARTIAL_COMPLETE"
	// PartialSyncFailed indicates the point was explicitly cancelled.
	PartialSyncFailed PartialSyncStatus = "FAILED"
	// PartialSyncTimedOut indicates the timeout fired while still waiting and
	// continuation was not permitted.
	PartialSyncTimedOut PartialSyncStatus = "TIMED_OUT"
)

// Terminal reports whether the status is one of the four end states.
func (s PartialSyncStatus) Terminal() bool { return s != PartialSyncWaiting }

// PartialSyncResult is the frozen outcome delivered to every waiter of a
// completed sync point. Late callers on an already-terminal point receive the
// same cached value.
type PartialSyncResult struct {
	PointID       string            `json:"point_id"`
	Status        PartialSyncStatus `json:"status"`
	Participating []string          `json:"participating"`
	Missing       []string          `json:"missing,omitempty"`
	MinimumMet    bool              `json:"minimum_met"`
	RequiredMet   bool              `json:"required_met"`
	CompletedAt   time.Time         `json:"completed_at"`
	Err           error             `json:"-"`
}

// PartialSyncInfo is a point-in-time snapshot of a sync point, safe for the
// caller to retain.
type PartialSyncInfo struct {
	ID          string             `json:"id"`
	Expected    []string           `json:"expected"`
	Arrived     []string           `json:"arrived"`
	Released    []string           `json:"released"`
	Status      PartialSyncStatus  `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	Result      *PartialSyncResult `json:"result,omitempty"`
}
