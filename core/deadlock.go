package core

import "time"

// CycleEntry is one hop in a detected deadlock cycle: the workstream that is
// blocked and the resource bridging it to the next workstream in the cycle.
type CycleEntry struct {
	WorkstreamID string `json:"workstream_id"`
	ResourceID   string `json:"resource_id"`
}

// DeadlockInfo records one detected deadlock and its resolution state. After
// detection it should be treated as immutable except for the resolution
// fields, which transition exactly once: Resolved flips false→true and never
// reverses.
type DeadlockInfo struct {
	ID                 string       `json:"id"`
	Workstreams        []string     `json:"workstreams"`
	Resources          []string     `json:"resources"`
	Cycle              []CycleEntry `json:"cycle"`
	DetectionAlgorithm string       `json:"detection_algorithm"`
	PreventionStrategy string       `json:"prevention_strategy"`
	DetectedAt         time.Time    `json:"detected_at"`
	Resolved           bool         `json:"resolved"`
	ResolutionMethod   string       `json:"resolution_method,omitempty"`
	ResolvedAt         *time.Time   `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate detector-owned state.
func (d *DeadlockInfo) Clone() *DeadlockInfo {
	if d == nil {
		return nil
	}
	nd := *d
	nd.Workstreams = append([]string(nil), d.Workstreams...)
	nd.Resources = append([]string(nil), d.Resources...)
	nd.Cycle = append([]CycleEntry(nil), d.Cycle...)
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		nd.ResolvedAt = &t
	}
	return &nd
}
