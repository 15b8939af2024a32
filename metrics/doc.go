// Package metrics exposes Prometheus instrumentation for SyncMesh.
//
// The Collector registers counters and gauges covering deadlock detection and
// resolution, sync-point outcomes, conflicts, transactions and wait-queue
// depth. A nil *Collector is a safe no-op, so components instrument
// unconditionally and callers opt in by supplying a registerer.
package metrics
