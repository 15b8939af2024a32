// Package logging provides a minimal logging interface and adapters for SyncMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) that coordination components use for observability. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - SyncMeshLogger with contextual helpers for deadlocks, sync points and
//     transactions
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh := syncmesh.New(func(o *syncmesh.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
