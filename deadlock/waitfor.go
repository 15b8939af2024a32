package deadlock

import (
	"sort"
	"time"

	"github.com/hupe1980/syncmesh/core"
)

// waitHop is one outgoing wait-for edge with its bridging resource.
type waitHop struct {
	to       string
	resource string
}

// detectWaitFor builds the wait-for graph (A→B iff A requests a resource held
// by B) and finds cycles via DFS with a recursion stack. Each cycle yields one
// DeadlockInfo whose resources are the specific bridging resources.
func (d *Detector) detectWaitFor() []*core.DeadlockInfo {
	adj := make(map[string][]waitHop)
	nodes := make(map[string]struct{})
	for _, e := range d.g.WaitFor() {
		adj[e.From] = append(adj[e.From], waitHop{to: e.To, resource: e.ResourceID})
		nodes[e.From] = struct{}{}
		nodes[e.To] = struct{}{}
	}

	// Deterministic traversal order keeps cycle reporting stable across runs.
	order := make([]string, 0, len(nodes))
	for n := range nodes {
		order = append(order, n)
	}
	sort.Strings(order)
	for _, hops := range adj {
		sort.Slice(hops, func(i, j int) bool { return hops[i].to < hops[j].to })
	}

	var (
		visited = make(map[string]bool)
		onStack = make(map[string]bool)
		stack   []string
		hops    []waitHop // hop taken to reach stack[i+1] from stack[i]
		found   []*core.DeadlockInfo
	)

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		onStack[node] = true
		stack = append(stack, node)

		for _, hop := range adj[node] {
			if onStack[hop.to] {
				found = append(found, d.buildCycle(stack, hops, hop))
				continue
			}
			if visited[hop.to] {
				continue
			}
			hops = append(hops, hop)
			dfs(hop.to)
			hops = hops[:len(hops)-1]
		}

		stack = stack[:len(stack)-1]
		onStack[node] = false
	}

	for _, n := range order {
		if !visited[n] {
			dfs(n)
		}
	}
	return found
}

// buildCycle converts the recursion stack suffix starting at the back-edge
// target into a DeadlockInfo. closing is the edge from the stack top back into
// the cycle.
func (d *Detector) buildCycle(stack []string, hops []waitHop, closing waitHop) *core.DeadlockInfo {
	start := 0
	for i, n := range stack {
		if n == closing.to {
			start = i
			break
		}
	}
	members := stack[start:]

	cycle := make([]core.CycleEntry, 0, len(members))
	resources := make([]string, 0, len(members))
	for i, ws := range members {
		var bridging string
		if i < len(members)-1 {
			bridging = hops[start+i].resource
		} else {
			bridging = closing.resource
		}
		cycle = append(cycle, core.CycleEntry{WorkstreamID: ws, ResourceID: bridging})
		resources = append(resources, bridging)
	}

	return &core.DeadlockInfo{
		ID:                 core.NewID(),
		Workstreams:        append([]string(nil), members...),
		Resources:          resources,
		Cycle:              cycle,
		DetectionAlgorithm: string(d.algorithm),
		PreventionStrategy: string(d.strategy),
		DetectedAt:         time.Now().UTC(),
	}
}

// detectTimeout reports every workstream with at least one request edge older
// than the allocation timeout as a single-workstream deadlock, independent of
// cycles.
func (d *Detector) detectTimeout() []*core.DeadlockInfo {
	cutoff := time.Now().UTC().Add(-d.allocationTimeout)

	stale := make(map[string][]string) // workstream → stale resource ids
	var order []string
	for _, p := range d.g.PendingRequests() {
		if !p.RequestedAt.Before(cutoff) {
			continue
		}
		if _, ok := stale[p.WorkstreamID]; !ok {
			order = append(order, p.WorkstreamID)
		}
		stale[p.WorkstreamID] = append(stale[p.WorkstreamID], p.ResourceID)
	}

	var found []*core.DeadlockInfo
	for _, ws := range order {
		resources := stale[ws]
		cycle := make([]core.CycleEntry, 0, len(resources))
		for _, r := range resources {
			cycle = append(cycle, core.CycleEntry{WorkstreamID: ws, ResourceID: r})
		}
		found = append(found, &core.DeadlockInfo{
			ID:                 core.NewID(),
			Workstreams:        []string{ws},
			Resources:          resources,
			Cycle:              cycle,
			DetectionAlgorithm: string(AlgorithmTimeout),
			PreventionStrategy: string(d.strategy),
			DetectedAt:         time.Now().UTC(),
		})
	}
	return found
}

// resourceCount returns how many resources the workstream currently holds.
func (d *Detector) resourceCount(workstreamID string) int {
	w, ok := d.g.Workstream(workstreamID)
	if !ok {
		return 0
	}
	return len(w.Allocated)
}
