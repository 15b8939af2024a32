package deadlock

import (
	"fmt"

	"github.com/hupe1980/syncmesh/core"
)

// recoveryResult pairs the victim action with the human-readable method
// recorded on the resolved deadlock.
type recoveryResult struct {
	victim VictimAction
	method string
}

// recover applies the configured strategy to an unresolved deadlock and
// returns what was done.
func (d *Detector) recover(dl *core.DeadlockInfo) recoveryResult {
	switch d.strategy {
	case StrategyTimeout, StrategyResourceOrdering:
		victim := dl.Workstreams[0]
		action := d.abort(dl.ID, victim)
		return recoveryResult{
			victim: action,
			method: fmt.Sprintf("aborted first workstream %q in cycle (%s)", victim, d.strategy),
		}

	case StrategyPreemption, StrategyAvoidance:
		victim := d.lowestPriority(dl.Workstreams)
		action := d.preempt(dl.ID, victim)
		return recoveryResult{
			victim: action,
			method: fmt.Sprintf("preempted resources of lowest-priority workstream %q (%s)", victim, d.strategy),
		}

	case StrategyDetectionRecovery:
		victim := d.fewestResources(dl.Workstreams)
		action := d.abort(dl.ID, victim)
		return recoveryResult{
			victim: action,
			method: fmt.Sprintf("aborted workstream %q holding fewest resources (%s)", victim, d.strategy),
		}

	default:
		victim := d.lowestPriority(dl.Workstreams)
		action := d.preempt(dl.ID, victim)
		return recoveryResult{
			victim: action,
			method: fmt.Sprintf("preempted resources of workstream %q (default strategy)", victim),
		}
	}
}

// abort performs a full abort: release every held resource, cancel every
// pending request and strip the victim's graph edges.
func (d *Detector) abort(deadlockID, workstreamID string) VictimAction {
	released := d.g.ReleaseAll(workstreamID)
	cancelled := d.g.CancelRequests(workstreamID)
	d.g.StripEdges(workstreamID)
	return VictimAction{
		DeadlockID:        deadlockID,
		WorkstreamID:      workstreamID,
		ReleasedResources: released,
		CancelledRequests: cancelled,
		FullAbort:         true,
	}
}

// preempt releases only the victim's held resources, leaving its pending
// requests intact so it can re-acquire once the cycle is broken.
func (d *Detector) preempt(deadlockID, workstreamID string) VictimAction {
	released := d.g.ReleaseAll(workstreamID)
	return VictimAction{
		DeadlockID:        deadlockID,
		WorkstreamID:      workstreamID,
		ReleasedResources: released,
	}
}

// lowestPriority picks the cycle member with the lowest priority; ties keep
// the first occurrence.
func (d *Detector) lowestPriority(workstreams []string) string {
	victim := workstreams[0]
	best := d.priority(victim)
	for _, ws := range workstreams[1:] {
		if p := d.priority(ws); p < best {
			victim, best = ws, p
		}
	}
	return victim
}

// fewestResources picks the cycle member holding the fewest resources; ties
// keep the first occurrence.
func (d *Detector) fewestResources(workstreams []string) string {
	victim := workstreams[0]
	best := d.resourceCount(victim)
	for _, ws := range workstreams[1:] {
		if n := d.resourceCount(ws); n < best {
			victim, best = ws, n
		}
	}
	return victim
}

func (d *Detector) priority(workstreamID string) int {
	w, ok := d.g.Workstream(workstreamID)
	if !ok {
		return 0
	}
	return w.Priority
}
