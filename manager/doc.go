// Package manager implements the SynchronizationManager façade: one instance
// owns the resource-allocation graph, the deadlock detector, sync primitives,
// data-exchange channels, the partial-sync manager, the conflict registry, the
// transaction manager and the notification fan-out of a single coordination
// domain.
//
// The manager adds the cross-cutting lifecycle: periodic deadlock detection
// and record cleanup run in background goroutines until Dispose, and
// CleanupWorkstream removes a departed workstream from every wait queue, graph
// entry and sync point it touched, re-evaluating completion conditions that
// may now be satisfiable. Multiple managers in one process form fully isolated
// coordination domains.
package manager
