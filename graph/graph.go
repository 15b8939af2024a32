package graph

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// ResourceStatus is the allocation state of a resource node.
type ResourceStatus string

const (
	// ResourceFree indicates no workstream holds or requests the resource.
	ResourceFree ResourceStatus = "free"
	// ResourceRequested indicates at least one pending request but no holder.
	ResourceRequested ResourceStatus = "requested"
	// ResourceAllocated indicates exactly one workstream holds the resource.
	ResourceAllocated ResourceStatus = "allocated"
)

// ResourceNode is one abstract shared resource. A resource is allocated to at
// most one workstream at any time; RequestedBy never contains a workstream
// twice.
type ResourceNode struct {
	ID          string         `json:"id"`
	Status      ResourceStatus `json:"status"`
	AllocatedTo string         `json:"allocated_to,omitempty"`
	RequestedBy []string       `json:"requested_by,omitempty"`
}

// WorkstreamNode is one registered concurrent participant. Allocated and
// Requested preserve insertion order.
type WorkstreamNode struct {
	ID        string   `json:"id"`
	Priority  int      `json:"priority"`
	Allocated []string `json:"allocated,omitempty"`
	Requested []string `json:"requested,omitempty"`
}

// EdgeType distinguishes the two edge directions of the allocation graph.
type EdgeType string

const (
	// EdgeRequest points workstream→resource.
	EdgeRequest EdgeType = "request"
	// EdgeAllocation points resource→workstream.
	EdgeAllocation EdgeType = "allocation"
)

// Edge is one entry in the append-only audit log from which the wait-for
// graph and request ages are derived.
type Edge struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      EdgeType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// WaitEdge is one derived wait-for relation: From is blocked requesting
// ResourceID, which To currently holds.
type WaitEdge struct {
	From       string
	To         string
	ResourceID string
}

// PendingRequest is one unanswered resource request plus its age source.
type PendingRequest struct {
	WorkstreamID string
	ResourceID   string
	RequestedAt  time.Time
}

// Options configures a Graph.
type Options struct {
	// Logger used for structured graph mutation logging. Defaults to NoOp.
	Logger logging.Logger
}

// Graph tracks allocate/request/release of abstract resources by workstreams.
// It is the single mutable structure shared across components and is safe for
// concurrent use.
type Graph struct {
	*core.LoggerAdapter

	mu          sync.RWMutex
	resources   map[string]*ResourceNode
	workstreams map[string]*WorkstreamNode
	edges       []Edge
}

// New constructs an empty resource-allocation graph.
func New(optFns ...func(o *Options)) *Graph {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Graph{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		resources:     make(map[string]*ResourceNode),
		workstreams:   make(map[string]*WorkstreamNode),
	}
}

// RegisterResource adds a resource node. Double registration is tolerated and
// returns a snapshot of the existing entry.
func (g *Graph) RegisterResource(id string) *ResourceNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.resources[id]; ok {
		return r.clone()
	}
	r := &ResourceNode{ID: id, Status: ResourceFree}
	g.resources[id] = r
	g.LogDebug("resource registered", "resource_id", id)
	return r.clone()
}

// RegisterWorkstream adds a workstream node with the given priority. Double
// registration updates the priority and keeps existing allocations.
func (g *Graph) RegisterWorkstream(id string, priority int) *WorkstreamNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.workstreams[id]; ok {
		w.Priority = priority
		return w.clone()
	}
	w := &WorkstreamNode{ID: id, Priority: priority}
	g.workstreams[id] = w
	g.LogDebug("workstream registered", "workstream_id", id, "priority", priority)
	return w.clone()
}

// RecordRequest appends a request edge workstream→resource. A workstream never
// appears twice in a resource's pending set; a duplicate request is a no-op.
func (g *Graph) RecordRequest(resourceID, workstreamID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, w, err := g.lookupLocked(resourceID, workstreamID)
	if err != nil {
		return err
	}
	if slices.Contains(r.RequestedBy, workstreamID) {
		return nil
	}
	r.RequestedBy = append(r.RequestedBy, workstreamID)
	if r.Status == ResourceFree {
		r.Status = ResourceRequested
	}
	w.Requested = append(w.Requested, resourceID)
	g.edges = append(g.edges, Edge{From: workstreamID, To: resourceID, Type: EdgeRequest, CreatedAt: time.Now().UTC()})
	return nil
}

// RecordAllocation grants the resource to the workstream, clearing any pending
// request by the same workstream, and appends an allocation edge
// resource→workstream.
func (g *Graph) RecordAllocation(resourceID, workstreamID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, w, err := g.lookupLocked(resourceID, workstreamID)
	if err != nil {
		return err
	}
	if r.Status == ResourceAllocated && r.AllocatedTo != workstreamID {
		return fmt.Errorf("resource %q already allocated to %q", resourceID, r.AllocatedTo)
	}
	r.Status = ResourceAllocated
	r.AllocatedTo = workstreamID
	r.RequestedBy = remove(r.RequestedBy, workstreamID)
	w.Requested = remove(w.Requested, resourceID)
	if !slices.Contains(w.Allocated, resourceID) {
		w.Allocated = append(w.Allocated, resourceID)
	}
	g.edges = append(g.edges, Edge{From: resourceID, To: workstreamID, Type: EdgeAllocation, CreatedAt: time.Now().UTC()})
	return nil
}

// RecordRelease returns the resource to the pool. Only the current holder may
// release.
func (g *Graph) RecordRelease(resourceID, workstreamID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, w, err := g.lookupLocked(resourceID, workstreamID)
	if err != nil {
		return err
	}
	if r.AllocatedTo != workstreamID {
		return fmt.Errorf("resource %q not held by %q", resourceID, workstreamID)
	}
	g.releaseLocked(r, w)
	return nil
}

// ReleaseAll releases every resource held by the workstream, returning the
// released resource ids in allocation order.
func (g *Graph) ReleaseAll(workstreamID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.workstreams[workstreamID]
	if !ok {
		return nil
	}
	released := append([]string(nil), w.Allocated...)
	for _, resourceID := range released {
		if r, ok := g.resources[resourceID]; ok {
			g.releaseLocked(r, w)
		}
	}
	return released
}

// CancelRequests withdraws every pending request by the workstream, returning
// the affected resource ids.
func (g *Graph) CancelRequests(workstreamID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.workstreams[workstreamID]
	if !ok {
		return nil
	}
	cancelled := append([]string(nil), w.Requested...)
	for _, resourceID := range cancelled {
		if r, ok := g.resources[resourceID]; ok {
			r.RequestedBy = remove(r.RequestedBy, workstreamID)
			if r.Status == ResourceRequested && len(r.RequestedBy) == 0 {
				r.Status = ResourceFree
			}
		}
	}
	w.Requested = nil
	return cancelled
}

// RemoveWorkstream aborts the workstream: releases its held resources, cancels
// its pending requests, strips its audit edges and deletes the node. Returns
// the released resource ids.
func (g *Graph) RemoveWorkstream(workstreamID string) []string {
	released := g.ReleaseAll(workstreamID)
	g.CancelRequests(workstreamID)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.stripEdgesLocked(workstreamID)
	delete(g.workstreams, workstreamID)
	g.LogDebug("workstream removed", "workstream_id", workstreamID, "released", released)
	return released
}

// StripEdges removes every audit edge touching the workstream without
// mutating node state. Used by recovery strategies performing a full abort.
func (g *Graph) StripEdges(workstreamID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stripEdgesLocked(workstreamID)
}

// WaitFor derives the wait-for graph: one edge per (blocked workstream, holder)
// pair with the bridging resource. Workstream A waits for B iff A requests a
// resource currently allocated to B.
func (g *Graph) WaitFor() []WaitEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var waits []WaitEdge
	for _, w := range g.workstreams {
		for _, resourceID := range w.Requested {
			r, ok := g.resources[resourceID]
			if !ok || r.Status != ResourceAllocated || r.AllocatedTo == w.ID {
				continue
			}
			waits = append(waits, WaitEdge{From: w.ID, To: r.AllocatedTo, ResourceID: resourceID})
		}
	}
	return waits
}

// PendingRequests returns every still-pending request paired with the
// timestamp of its original request edge, oldest edge winning.
func (g *Graph) PendingRequests() []PendingRequest {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var pending []PendingRequest
	for _, e := range g.edges {
		if e.Type != EdgeRequest {
			continue
		}
		r, ok := g.resources[e.To]
		if !ok || !slices.Contains(r.RequestedBy, e.From) {
			continue
		}
		pending = append(pending, PendingRequest{WorkstreamID: e.From, ResourceID: e.To, RequestedAt: e.CreatedAt})
	}
	return pending
}

// ContentionReport returns, per allocated resource, how many workstreams are
// currently queued behind the holder.
func (g *Graph) ContentionReport() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	report := make(map[string]int)
	for id, r := range g.resources {
		if r.Status == ResourceAllocated && len(r.RequestedBy) > 0 {
			report[id] = len(r.RequestedBy)
		}
	}
	return report
}

// Resource returns a snapshot of the resource node.
func (g *Graph) Resource(id string) (*ResourceNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.resources[id]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Workstream returns a snapshot of the workstream node.
func (g *Graph) Workstream(id string) (*WorkstreamNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.workstreams[id]
	if !ok {
		return nil, false
	}
	return w.clone(), true
}

// Workstreams returns snapshots of every registered workstream.
func (g *Graph) Workstreams() []*WorkstreamNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*WorkstreamNode, 0, len(g.workstreams))
	for _, w := range g.workstreams {
		out = append(out, w.clone())
	}
	return out
}

// Edges returns a copy of the audit log in append order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

func (g *Graph) lookupLocked(resourceID, workstreamID string) (*ResourceNode, *WorkstreamNode, error) {
	r, ok := g.resources[resourceID]
	if !ok {
		return nil, nil, fmt.Errorf("resource %q: %w", resourceID, core.ErrNotFound)
	}
	w, ok := g.workstreams[workstreamID]
	if !ok {
		return nil, nil, fmt.Errorf("workstream %q: %w", workstreamID, core.ErrNotFound)
	}
	return r, w, nil
}

func (g *Graph) releaseLocked(r *ResourceNode, w *WorkstreamNode) {
	r.AllocatedTo = ""
	if len(r.RequestedBy) > 0 {
		r.Status = ResourceRequested
	} else {
		r.Status = ResourceFree
	}
	w.Allocated = remove(w.Allocated, r.ID)
}

func (g *Graph) stripEdgesLocked(workstreamID string) {
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.From != workstreamID && e.To != workstreamID {
			kept = append(kept, e)
		}
	}
	g.edges = kept
}

func (r *ResourceNode) clone() *ResourceNode {
	nr := *r
	nr.RequestedBy = append([]string(nil), r.RequestedBy...)
	return &nr
}

func (w *WorkstreamNode) clone() *WorkstreamNode {
	nw := *w
	nw.Allocated = append([]string(nil), w.Allocated...)
	nw.Requested = append([]string(nil), w.Requested...)
	return &nw
}

func remove(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
