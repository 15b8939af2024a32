package testutil

import (
	"testing"

	"github.com/hupe1980/syncmesh/graph"
)

// GraphBuilder assembles allocation-graph fixtures with a fluent API. Every
// recording step fails the test on error so scenarios stay terse.
type GraphBuilder struct {
	t *testing.T
	g *graph.Graph
}

// NewGraphBuilder creates a builder over a fresh graph.
func NewGraphBuilder(t *testing.T) *GraphBuilder {
	t.Helper()
	return &GraphBuilder{t: t, g: graph.New()}
}

// WithWorkstream registers a workstream with the given priority.
func (b *GraphBuilder) WithWorkstream(id string, priority int) *GraphBuilder {
	b.g.RegisterWorkstream(id, priority)
	return b
}

// WithResource registers a resource.
func (b *GraphBuilder) WithResource(id string) *GraphBuilder {
	b.g.RegisterResource(id)
	return b
}

// Holding allocates a resource to a workstream.
func (b *GraphBuilder) Holding(workstreamID, resourceID string) *GraphBuilder {
	b.t.Helper()
	if err := b.g.RecordAllocation(resourceID, workstreamID); err != nil {
		b.t.Fatalf("allocate %s to %s: %v", resourceID, workstreamID, err)
	}
	return b
}

// Requesting records a pending request.
func (b *GraphBuilder) Requesting(workstreamID, resourceID string) *GraphBuilder {
	b.t.Helper()
	if err := b.g.RecordRequest(resourceID, workstreamID); err != nil {
		b.t.Fatalf("request %s by %s: %v", resourceID, workstreamID, err)
	}
	return b
}

// Build returns the assembled graph.
func (b *GraphBuilder) Build() *graph.Graph { return b.g }

// TwoCycle builds the canonical two-party deadlock: w1 holds r1 and requests
// r2, w2 holds r2 and requests r1.
func TwoCycle(t *testing.T, w1, w2, r1, r2 string) *graph.Graph {
	t.Helper()
	return NewGraphBuilder(t).
		WithWorkstream(w1, 1).
		WithWorkstream(w2, 2).
		WithResource(r1).
		WithResource(r2).
		Holding(w1, r1).
		Holding(w2, r2).
		Requesting(w1, r2).
		Requesting(w2, r1).
		Build()
}
