package core

import "time"

// ConflictStatus is the lifecycle state of a conflict record.
type ConflictStatus string

const (
	// ConflictDetected is the initial state of every recorded conflict.
	ConflictDetected ConflictStatus = "detected"
	// ConflictAnalyzing indicates a handler is inspecting the conflict.
	ConflictAnalyzing ConflictStatus = "analyzing"
	// ConflictResolving indicates a handler is actively resolving.
	ConflictResolving ConflictStatus = "resolving"
	// ConflictResolved indicates resolution succeeded; ResolutionResult holds
	// the outcome.
	ConflictResolved ConflictStatus = "resolved"
	// ConflictUnresolvable indicates every applicable handler declined or
	// failed.
	ConflictUnresolvable ConflictStatus = "unresolvable"
)

// ConflictSeverity grades how disruptive a conflict is to forward progress.
type ConflictSeverity string

const (
	// SeverityLow marks conflicts that do not block any workstream.
	SeverityLow ConflictSeverity = "low"
	// SeverityMedium marks conflicts degrading but not halting progress.
	SeverityMedium ConflictSeverity = "medium"
	// SeverityHigh marks conflicts blocking at least one workstream.
	SeverityHigh ConflictSeverity = "high"
	// SeverityCritical marks conflicts blocking multiple workstreams.
	SeverityCritical ConflictSeverity = "critical"
)

// ConflictInfo records one detected conflict between workstreams over a shared
// scope, plus its resolution outcome.
type ConflictInfo struct {
	ID                 string           `json:"id"`
	Scope              string           `json:"scope"`
	Workstreams        []string         `json:"workstreams"`
	Reason             string           `json:"reason"`
	Type               string           `json:"type"`
	Severity           ConflictSeverity `json:"severity"`
	Status             ConflictStatus   `json:"status"`
	ResolutionStrategy string           `json:"resolution_strategy,omitempty"`
	ConflictData       map[string]any   `json:"conflict_data,omitempty"`
	ResolutionResult   any              `json:"resolution_result,omitempty"`
	DetectedAt         time.Time        `json:"detected_at"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy         string           `json:"resolved_by,omitempty"`
}

// Clone returns a copy so registry-owned state cannot be mutated by callers.
func (c *ConflictInfo) Clone() *ConflictInfo {
	if c == nil {
		return nil
	}
	nc := *c
	nc.Workstreams = append([]string(nil), c.Workstreams...)
	if c.ConflictData != nil {
		nc.ConflictData = make(map[string]any, len(c.ConflictData))
		for k, v := range c.ConflictData {
			nc.ConflictData[k] = v
		}
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		nc.ResolvedAt = &t
	}
	return &nc
}
