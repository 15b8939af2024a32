// Package syncmesh provides a high-level façade over the SynchronizationManager
// and its coordination components (primitives, data exchange, deadlock
// detection, partial synchronization, conflicts, transactions & logging)
// enabling independently progressing workstreams to coordinate without a
// central scheduler. Most applications interact with this package by:
//  1. Creating a SyncMesh via New() (optionally overriding config, logger and metrics)
//  2. Registering workstreams and resources with raw string identifiers
//  3. Creating primitives, channels and sync points and waiting on them
//
// The façade delegates coordination to manager.Manager while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger and a
// Prometheus registerer.
package syncmesh

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/syncmesh/conflict"
	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/exchange"
	"github.com/hupe1980/syncmesh/logging"
	"github.com/hupe1980/syncmesh/manager"
	"github.com/hupe1980/syncmesh/metrics"
	"github.com/hupe1980/syncmesh/notify"
	"github.com/hupe1980/syncmesh/partial"
	"github.com/hupe1980/syncmesh/primitive"
)

// Options configures the SyncMesh instance.
type Options struct {
	// Config contains the manager's operational parameters (detection and
	// cleanup intervals, allocation timeout, algorithm, strategy).
	Config manager.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// MetricsRegisterer enables Prometheus instrumentation when set. Nil
	// disables metrics entirely.
	MetricsRegisterer prometheus.Registerer
}

// SyncMesh is the high-level façade aggregating the synchronization manager
// and its components. Each SyncMesh is a fully isolated coordination domain;
// create several to coordinate independent populations of workstreams in one
// process.
type SyncMesh struct {
	opts    Options
	manager *manager.Manager
}

// New creates a new SyncMesh instance with optional overrides.
func New(optFns ...func(o *Options)) (*SyncMesh, error) {
	opts := Options{
		Config: manager.DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var collector *metrics.Collector
	if opts.MetricsRegisterer != nil {
		collector = metrics.NewCollector(opts.MetricsRegisterer)
	}

	m, err := manager.New(func(o *manager.Options) {
		o.Config = opts.Config
		o.Logger = opts.Logger
		o.Metrics = collector
	})
	if err != nil {
		return nil, err
	}

	return &SyncMesh{opts: opts, manager: m}, nil
}

// Manager exposes the underlying SynchronizationManager for advanced use.
func (s *SyncMesh) Manager() *manager.Manager { return s.manager }

// RegisterWorkstream adds a workstream to the coordination domain.
func (s *SyncMesh) RegisterWorkstream(workstreamID string, priority int) {
	s.manager.RegisterWorkstream(workstreamID, priority)
}

// RegisterResource adds an abstract shared resource. Double registration is
// idempotent.
func (s *SyncMesh) RegisterResource(resourceID string) {
	s.manager.RegisterResource(resourceID)
}

// RequestResource records a pending resource request.
func (s *SyncMesh) RequestResource(resourceID, workstreamID string) error {
	return s.manager.RequestResource(resourceID, workstreamID)
}

// AllocateResource grants a resource to a workstream.
func (s *SyncMesh) AllocateResource(resourceID, workstreamID string) error {
	return s.manager.AllocateResource(resourceID, workstreamID)
}

// ReleaseResource returns a held resource.
func (s *SyncMesh) ReleaseResource(resourceID, workstreamID string) error {
	return s.manager.ReleaseResource(resourceID, workstreamID)
}

// ContentionReport returns, per allocated resource, how many workstreams are
// queued behind the holder.
func (s *SyncMesh) ContentionReport() map[string]int {
	return s.manager.ContentionReport()
}

// CreateBarrier creates (or returns the existing) named barrier.
func (s *SyncMesh) CreateBarrier(name string, parties int) *primitive.Barrier {
	return s.manager.CreateBarrier(name, parties)
}

// CreateSemaphore creates (or returns the existing) named semaphore.
func (s *SyncMesh) CreateSemaphore(name string, permits int) *primitive.Semaphore {
	return s.manager.CreateSemaphore(name, permits)
}

// CreateMutex creates (or returns the existing) named mutex.
func (s *SyncMesh) CreateMutex(name string) *primitive.Mutex {
	return s.manager.CreateMutex(name)
}

// CreateCountdownLatch creates (or returns the existing) named latch.
func (s *SyncMesh) CreateCountdownLatch(name string, count int) *primitive.CountdownLatch {
	return s.manager.CreateCountdownLatch(name, count)
}

// CreateDataExchangeChannel creates (or returns the existing) named channel.
func (s *SyncMesh) CreateDataExchangeChannel(id string, mode exchange.Mode) (*exchange.Channel, error) {
	return s.manager.CreateDataExchangeChannel(id, mode)
}

// GetDataExchangeChannel returns the named channel.
func (s *SyncMesh) GetDataExchangeChannel(id string) (*exchange.Channel, error) {
	return s.manager.GetDataExchangeChannel(id)
}

// DetectDeadlocks runs one detection pass and returns the new records.
func (s *SyncMesh) DetectDeadlocks() []*core.DeadlockInfo {
	return s.manager.DetectDeadlocks()
}

// ResolveDeadlock applies the configured recovery strategy to a deadlock.
func (s *SyncMesh) ResolveDeadlock(deadlockID string) error {
	return s.manager.ResolveDeadlock(deadlockID)
}

// DetectConflict records a conflict between workstreams over a shared scope.
func (s *SyncMesh) DetectConflict(scope string, workstreams []string, reason, conflictType string, severity core.ConflictSeverity, data map[string]any) *core.ConflictInfo {
	return s.manager.DetectConflict(scope, workstreams, reason, conflictType, severity, data)
}

// ResolveConflict dispatches a conflict to its resolution handler.
func (s *SyncMesh) ResolveConflict(ctx context.Context, conflictID string) (any, error) {
	return s.manager.ResolveConflict(ctx, conflictID)
}

// RegisterConflictHandler appends a pluggable conflict resolution handler.
func (s *SyncMesh) RegisterConflictHandler(h conflict.Handler) {
	s.manager.RegisterConflictHandler(h)
}

// BeginTransaction opens a pending transaction for the workstreams.
func (s *SyncMesh) BeginTransaction(workstreams []string) string {
	return s.manager.BeginTransaction(workstreams)
}

// AddTransactionOperation appends an operation without executing it.
func (s *SyncMesh) AddTransactionOperation(txID, opType, target string, params map[string]any, execute, undo core.OperationFunc) error {
	return s.manager.AddTransactionOperation(txID, opType, target, params, execute, undo)
}

// CommitTransaction executes a transaction atomically.
func (s *SyncMesh) CommitTransaction(ctx context.Context, txID string) error {
	return s.manager.CommitTransaction(ctx, txID)
}

// CreatePartialSyncPoint creates a rendezvous over the expected workstreams.
func (s *SyncMesh) CreatePartialSyncPoint(expected []string, cfg partial.Config) (string, error) {
	return s.manager.CreatePartialSyncPoint(expected, cfg)
}

// WaitAtPartialSyncPoint registers arrival and blocks until the point
// completes.
func (s *SyncMesh) WaitAtPartialSyncPoint(ctx context.Context, pointID, workstreamID string) (*core.PartialSyncResult, error) {
	return s.manager.WaitAtPartialSyncPoint(ctx, pointID, workstreamID)
}

// SendNotification publishes a typed notification to subscribers.
func (s *SyncMesh) SendNotification(notifType, source string, payload map[string]any) {
	s.manager.SendNotification(notifType, source, payload)
}

// SubscribeToNotifications registers a handler for the given types.
func (s *SyncMesh) SubscribeToNotifications(id string, types []string, handler notify.Handler) string {
	return s.manager.SubscribeToNotifications(id, types, handler)
}

// CleanupWorkstream removes a departed workstream from every wait queue,
// graph entry and sync point it touched.
func (s *SyncMesh) CleanupWorkstream(workstreamID string) {
	s.manager.CleanupWorkstream(workstreamID)
}

// Dispose stops the background loops and releases all timers and queues.
func (s *SyncMesh) Dispose() {
	s.manager.Dispose()
}
