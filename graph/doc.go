// Package graph implements the resource-allocation graph shared by the
// deadlock detector and the synchronization manager. Resources and workstreams
// are stored in an arena keyed by string id rather than linked by pointers, so
// the bidirectional resource↔workstream references never form ownership
// cycles. One RWMutex serializes mutation against detection passes reading the
// graph.
package graph
