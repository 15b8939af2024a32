package deadlock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/graph"
	"github.com/hupe1980/syncmesh/logging"
)

// Algorithm selects the detection method.
type Algorithm string

const (
	// AlgorithmWaitForGraph finds cycles in the derived wait-for graph.
	AlgorithmWaitForGraph Algorithm = "wait-for-graph"
	// AlgorithmResourceAllocationGraph delegates to wait-for-graph detection.
	AlgorithmResourceAllocationGraph Algorithm = "resource-allocation-graph"
	// AlgorithmBankers is an open extension point and reports no deadlocks.
	AlgorithmBankers Algorithm = "bankers"
	// AlgorithmTimeout flags request edges older than the allocation timeout.
	AlgorithmTimeout Algorithm = "timeout"
)

// Strategy selects the recovery action applied to each new deadlock.
type Strategy string

const (
	// StrategyTimeout aborts the first workstream in the cycle.
	StrategyTimeout Strategy = "timeout"
	// StrategyResourceOrdering aborts the first workstream in the cycle.
	StrategyResourceOrdering Strategy = "resource-ordering-recovery"
	// StrategyPreemption releases the held resources of the lowest-priority
	// workstream, leaving its pending requests intact.
	StrategyPreemption Strategy = "preemption"
	// StrategyAvoidance behaves like StrategyPreemption.
	StrategyAvoidance Strategy = "avoidance-recovery"
	// StrategyDetectionRecovery fully aborts the workstream holding the
	// fewest resources.
	StrategyDetectionRecovery Strategy = "detection-recovery"
)

// VictimAction describes what a recovery strategy did to its victim. The
// owning manager uses it to force-release the victim's parked waits.
type VictimAction struct {
	DeadlockID        string
	WorkstreamID      string
	ReleasedResources []string
	CancelledRequests []string
	FullAbort         bool
}

// Options configures a Detector.
type Options struct {
	// Algorithm selects the detection method. Defaults to wait-for-graph.
	Algorithm Algorithm
	// Strategy selects the recovery action. Defaults to preemption.
	Strategy Strategy
	// AllocationTimeout bounds how long a request edge may stay pending
	// before timeout-based detection flags it.
	AllocationTimeout time.Duration
	// AutoResolve applies the strategy to every new deadlock immediately.
	AutoResolve bool
	// OnVictim is invoked after a strategy acted on its victim.
	OnVictim func(action VictimAction)
	// Logger used for structured detection logging. Defaults to NoOp.
	Logger logging.Logger
}

// Detector runs detection algorithms over a live resource-allocation graph,
// builds deadlock records and applies a recovery strategy. It is safe for
// concurrent use; detection passes serialize against graph mutation through
// the graph's own lock.
type Detector struct {
	*core.LoggerAdapter

	g                 *graph.Graph
	algorithm         Algorithm
	strategy          Strategy
	allocationTimeout time.Duration
	autoResolve       bool
	onVictim          func(action VictimAction)

	mu        sync.Mutex
	deadlocks map[string]*core.DeadlockInfo
}

// New creates a detector over the given graph.
func New(g *graph.Graph, optFns ...func(o *Options)) *Detector {
	opts := Options{
		Algorithm:         AlgorithmWaitForGraph,
		Strategy:          StrategyPreemption,
		AllocationTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Detector{
		LoggerAdapter:     core.NewLoggerAdapter(opts.Logger),
		g:                 g,
		algorithm:         opts.Algorithm,
		strategy:          opts.Strategy,
		allocationTimeout: opts.AllocationTimeout,
		autoResolve:       opts.AutoResolve,
		onVictim:          opts.OnVictim,
		deadlocks:         make(map[string]*core.DeadlockInfo),
	}
}

// Algorithm returns the configured detection algorithm.
func (d *Detector) Algorithm() Algorithm { return d.algorithm }

// Strategy returns the configured prevention strategy.
func (d *Detector) Strategy() Strategy { return d.strategy }

// Detect runs one detection pass and returns the newly recorded deadlocks as
// snapshots. A cycle already tracked by an unresolved record is not recorded
// twice. With AutoResolve enabled, each new deadlock is resolved before
// returning.
func (d *Detector) Detect() []*core.DeadlockInfo {
	var found []*core.DeadlockInfo
	switch d.algorithm {
	case AlgorithmWaitForGraph, AlgorithmResourceAllocationGraph:
		found = d.detectWaitFor()
	case AlgorithmTimeout:
		found = d.detectTimeout()
	case AlgorithmBankers:
		// Extension point: safe-state analysis is not implemented and the
		// algorithm intentionally reports nothing.
		return nil
	default:
		return nil
	}

	d.mu.Lock()
	var fresh []*core.DeadlockInfo
	for _, dl := range found {
		if d.trackedLocked(dl) {
			continue
		}
		d.deadlocks[dl.ID] = dl
		fresh = append(fresh, dl)
	}
	d.mu.Unlock()

	for _, dl := range fresh {
		d.LogWarn("deadlock detected", "deadlock_id", dl.ID, "workstreams", dl.Workstreams, "algorithm", dl.DetectionAlgorithm)
		if d.autoResolve {
			if err := d.ResolveDeadlock(dl.ID); err != nil {
				d.LogError("auto-resolve failed", "deadlock_id", dl.ID, "error", err)
			}
		}
	}

	return d.snapshots(fresh)
}

// ResolveDeadlock applies the configured strategy to the deadlock. Resolving
// an already-resolved deadlock is a no-op.
func (d *Detector) ResolveDeadlock(id string) error {
	d.mu.Lock()
	dl, ok := d.deadlocks[id]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("deadlock %q: %w", id, core.ErrNotFound)
	}
	if dl.Resolved {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	action := d.recover(dl)

	d.mu.Lock()
	if !dl.Resolved {
		now := time.Now().UTC()
		dl.Resolved = true
		dl.ResolvedAt = &now
		dl.ResolutionMethod = action.method
	}
	d.mu.Unlock()

	d.LogInfo("deadlock resolved", "deadlock_id", id, "method", action.method, "victim", action.victim.WorkstreamID)
	if d.onVictim != nil {
		d.onVictim(action.victim)
	}
	return nil
}

// Deadlock returns a snapshot of one record.
func (d *Detector) Deadlock(id string) (*core.DeadlockInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dl, ok := d.deadlocks[id]
	if !ok {
		return nil, false
	}
	return dl.Clone(), true
}

// Deadlocks returns snapshots of every tracked record, newest first.
func (d *Detector) Deadlocks() []*core.DeadlockInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*core.DeadlockInfo, 0, len(d.deadlocks))
	for _, dl := range d.deadlocks {
		out = append(out, dl.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out
}

// CleanupResolved drops resolved records older than maxAge and returns how
// many were removed.
func (d *Detector) CleanupResolved(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for id, dl := range d.deadlocks {
		if dl.Resolved && dl.ResolvedAt != nil && dl.ResolvedAt.Before(cutoff) {
			delete(d.deadlocks, id)
			removed++
		}
	}
	return removed
}

// trackedLocked reports whether an unresolved record already covers the same
// workstream set. Caller holds d.mu.
func (d *Detector) trackedLocked(dl *core.DeadlockInfo) bool {
	sig := signature(dl.Workstreams)
	for _, existing := range d.deadlocks {
		if !existing.Resolved && signature(existing.Workstreams) == sig {
			return true
		}
	}
	return false
}

func (d *Detector) snapshots(dls []*core.DeadlockInfo) []*core.DeadlockInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*core.DeadlockInfo, 0, len(dls))
	for _, dl := range dls {
		out = append(out, dl.Clone())
	}
	return out
}

func signature(workstreams []string) string {
	s := append([]string(nil), workstreams...)
	sort.Strings(s)
	return strings.Join(s, "\x00")
}
