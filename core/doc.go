// Package core provides the foundational domain types and shared interfaces
// used by SyncMesh. It defines the core abstractions for:
//
//   - Workstreams (logical, independently progressing units of concurrent work)
//   - Deadlock records (detected cycles plus their resolution state)
//   - Partial-synchronization points and their frozen results
//   - Conflict records with pluggable resolution outcomes
//   - Transactions grouping undoable operations
//   - Notifications fanned out to subscribers
//
// The package intentionally keeps implementation concerns (wait queues, graph
// algorithms, the manager façade) out of scope, exposing plain data records and
// small interfaces so component packages stay decoupled. All exported
// identifiers include concise documentation to aid discoverability and
// external consumption.
package core
