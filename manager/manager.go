package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/syncmesh/conflict"
	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/deadlock"
	"github.com/hupe1980/syncmesh/exchange"
	"github.com/hupe1980/syncmesh/graph"
	"github.com/hupe1980/syncmesh/logging"
	"github.com/hupe1980/syncmesh/metrics"
	"github.com/hupe1980/syncmesh/notify"
	"github.com/hupe1980/syncmesh/partial"
	"github.com/hupe1980/syncmesh/primitive"
	"github.com/hupe1980/syncmesh/transaction"
)

// notifySource identifies the manager in notifications it authors.
const notifySource = "synchronization-manager"

// Options configures a Manager.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
	// Metrics receives instrumentation. Nil disables metrics.
	Metrics *metrics.Collector
}

// Manager is the SynchronizationManager façade. It owns one instance of each
// coordination component and is the only object callers touch. All methods
// are safe for concurrent use.
type Manager struct {
	*core.LoggerAdapter

	config  Config
	metrics *metrics.Collector

	g            *graph.Graph
	detector     *deadlock.Detector
	partialSync  *partial.Manager
	conflicts    *conflict.Registry
	transactions *transaction.Manager
	notifier     *notify.Notifier

	mu         sync.RWMutex
	barriers   map[string]*primitive.Barrier
	semaphores map[string]*primitive.Semaphore
	mutexes    map[string]*primitive.Mutex
	latches    map[string]*primitive.CountdownLatch
	channels   map[string]*exchange.Channel
	disposed   bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a SynchronizationManager. The configuration is validated; the
// background detection and cleanup loops start immediately when their
// intervals are non-zero.
func New(optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{Config: DefaultConfig}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := validator.New().Struct(opts.Config); err != nil {
		return nil, fmt.Errorf("invalid manager config: %w", err)
	}

	m := &Manager{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		config:        opts.Config,
		metrics:       opts.Metrics,
		barriers:      make(map[string]*primitive.Barrier),
		semaphores:    make(map[string]*primitive.Semaphore),
		mutexes:       make(map[string]*primitive.Mutex),
		latches:       make(map[string]*primitive.CountdownLatch),
		channels:      make(map[string]*exchange.Channel),
	}

	logger := m.Logger()

	m.g = graph.New(func(o *graph.Options) { o.Logger = logger })
	m.notifier = notify.New(func(o *notify.Options) { o.Logger = logger })

	m.detector = deadlock.New(m.g, func(o *deadlock.Options) {
		o.Algorithm = opts.Config.Algorithm
		o.Strategy = opts.Config.Strategy
		o.AllocationTimeout = opts.Config.AllocationTimeout
		o.AutoResolve = opts.Config.AutoResolve
		o.OnVictim = m.handleVictim
		o.Logger = logger
	})

	m.partialSync = partial.NewManager(func(o *partial.Options) {
		o.OnComplete = m.handleSyncPointComplete
		o.Logger = logger
	})

	m.conflicts = conflict.NewRegistry(func(o *conflict.Options) {
		o.OnDetected = m.handleConflictDetected
		o.OnResolved = m.handleConflictResolved
		o.Logger = logger
	})

	m.transactions = transaction.NewManager(func(o *transaction.Options) {
		o.OnFinished = m.handleTransactionFinished
		o.Logger = logger
	})

	m.start()
	return m, nil
}

// Graph exposes the underlying resource-allocation graph, mainly for
// inspection and tests.
func (m *Manager) Graph() *graph.Graph { return m.g }

// RegisterWorkstream adds a workstream to the allocation graph.
func (m *Manager) RegisterWorkstream(workstreamID string, priority int) {
	m.g.RegisterWorkstream(workstreamID, priority)
	m.metrics.WorkstreamRegistered()
}

// RegisterResource adds a resource to the allocation graph. Double
// registration is idempotent.
func (m *Manager) RegisterResource(resourceID string) {
	m.g.RegisterResource(resourceID)
}

// RequestResource records a pending request edge workstream→resource.
func (m *Manager) RequestResource(resourceID, workstreamID string) error {
	return m.g.RecordRequest(resourceID, workstreamID)
}

// AllocateResource grants a resource to a workstream.
func (m *Manager) AllocateResource(resourceID, workstreamID string) error {
	return m.g.RecordAllocation(resourceID, workstreamID)
}

// ReleaseResource returns a resource held by the workstream.
func (m *Manager) ReleaseResource(resourceID, workstreamID string) error {
	return m.g.RecordRelease(resourceID, workstreamID)
}

// ContentionReport returns, per allocated resource, how many workstreams are
// queued behind the holder.
func (m *Manager) ContentionReport() map[string]int {
	return m.g.ContentionReport()
}

// DetectDeadlocks runs one detection pass, publishing a notification per new
// deadlock, and returns the new records.
func (m *Manager) DetectDeadlocks() []*core.DeadlockInfo {
	found := m.detector.Detect()
	for _, dl := range found {
		m.metrics.DeadlockDetected()
		m.notifier.Publish(core.NewNotification(core.NotifyDeadlockDetected, notifySource, map[string]any{
			"deadlock_id": dl.ID,
			"workstreams": dl.Workstreams,
			"resources":   dl.Resources,
			"algorithm":   dl.DetectionAlgorithm,
		}))
	}
	return found
}

// ResolveDeadlock applies the configured recovery strategy to a deadlock.
func (m *Manager) ResolveDeadlock(deadlockID string) error {
	return m.detector.ResolveDeadlock(deadlockID)
}

// Deadlocks returns snapshots of every tracked deadlock record.
func (m *Manager) Deadlocks() []*core.DeadlockInfo {
	return m.detector.Deadlocks()
}

// DetectConflict records a conflict between workstreams over a shared scope.
func (m *Manager) DetectConflict(scope string, workstreams []string, reason, conflictType string, severity core.ConflictSeverity, data map[string]any) *core.ConflictInfo {
	return m.conflicts.DetectConflict(scope, workstreams, reason, conflictType, severity, data)
}

// ResolveConflict dispatches a conflict to its resolution handler.
func (m *Manager) ResolveConflict(ctx context.Context, conflictID string) (any, error) {
	return m.conflicts.ResolveConflict(ctx, conflictID)
}

// RegisterConflictHandler appends a pluggable resolution handler.
func (m *Manager) RegisterConflictHandler(h conflict.Handler) {
	m.conflicts.RegisterHandler(h)
}

// BeginTransaction opens a pending transaction for the workstreams.
func (m *Manager) BeginTransaction(workstreams []string) string {
	return m.transactions.Begin(workstreams)
}

// AddTransactionOperation appends an operation to a pending transaction.
func (m *Manager) AddTransactionOperation(txID, opType, target string, params map[string]any, execute, undo core.OperationFunc) error {
	return m.transactions.AddOperation(txID, opType, target, params, execute, undo)
}

// CommitTransaction executes a transaction atomically.
func (m *Manager) CommitTransaction(ctx context.Context, txID string) error {
	return m.transactions.Commit(ctx, txID)
}

// RollbackTransaction manually aborts a pending transaction.
func (m *Manager) RollbackTransaction(txID string) error {
	return m.transactions.Rollback(txID)
}

// GetTransaction returns a snapshot of one transaction.
func (m *Manager) GetTransaction(txID string) (*core.Transaction, bool) {
	return m.transactions.Transaction(txID)
}

// CreatePartialSyncPoint creates a rendezvous over the expected workstreams.
func (m *Manager) CreatePartialSyncPoint(expected []string, cfg partial.Config) (string, error) {
	return m.partialSync.CreateSyncPoint(expected, cfg)
}

// WaitAtPartialSyncPoint registers arrival and blocks until the point
// completes.
func (m *Manager) WaitAtPartialSyncPoint(ctx context.Context, pointID, workstreamID string) (*core.PartialSyncResult, error) {
	m.metrics.WaiterParked()
	defer m.metrics.WaiterReleased()
	return m.partialSync.Wait(ctx, pointID, workstreamID)
}

// CancelPartialSyncPoint fails a waiting point, carrying an optional cause.
func (m *Manager) CancelPartialSyncPoint(pointID string, cause error) error {
	return m.partialSync.Cancel(pointID, cause)
}

// GetPartialSyncInfo returns a snapshot of one sync point.
func (m *Manager) GetPartialSyncInfo(pointID string) (*core.PartialSyncInfo, bool) {
	return m.partialSync.Info(pointID)
}

// SendNotification publishes a typed notification to subscribers.
func (m *Manager) SendNotification(notifType, source string, payload map[string]any) {
	m.notifier.Publish(core.NewNotification(notifType, source, payload))
}

// SubscribeToNotifications registers a handler for the given types ("*" for
// all).
func (m *Manager) SubscribeToNotifications(id string, types []string, handler notify.Handler) string {
	return m.notifier.Subscribe(id, types, handler)
}

// UnsubscribeFromNotifications removes a notification subscription.
func (m *Manager) UnsubscribeFromNotifications(id string) {
	m.notifier.Unsubscribe(id)
}

// RecentNotifications returns up to limit retained notifications.
func (m *Manager) RecentNotifications(limit int) []core.Notification {
	return m.notifier.Recent(limit)
}

// CleanupResolvedDeadlocks drops resolved deadlock records older than the
// configured retention and returns how many were removed.
func (m *Manager) CleanupResolvedDeadlocks() int {
	return m.detector.CleanupResolved(m.config.MaxCompletedAge)
}

// CleanupCompletedSyncPoints drops terminal sync points older than the
// configured retention and returns how many were removed.
func (m *Manager) CleanupCompletedSyncPoints() int {
	return m.partialSync.CleanupCompleted(m.config.MaxCompletedAge)
}

// CleanupWorkstream removes a departed workstream everywhere it is known:
// the allocation graph, every primitive wait queue, channel subscriptions and
// sync points. Completion conditions that become satisfiable are re-evaluated.
func (m *Manager) CleanupWorkstream(workstreamID string) {
	released := m.g.RemoveWorkstream(workstreamID)

	m.mu.RLock()
	for _, b := range m.barriers {
		b.RemoveWaiter(workstreamID)
	}
	for _, s := range m.semaphores {
		s.RemoveWaiter(workstreamID)
		s.ReleaseAll(workstreamID)
	}
	for _, mx := range m.mutexes {
		mx.RemoveWaiter(workstreamID)
	}
	for _, l := range m.latches {
		l.RemoveWaiter(workstreamID)
	}
	for _, ch := range m.channels {
		ch.Unsubscribe(workstreamID)
	}
	m.mu.RUnlock()

	m.partialSync.RemoveWorkstream(workstreamID)
	m.metrics.WorkstreamRemoved()

	m.notifier.Publish(core.NewNotification(core.NotifyWorkstreamCleanup, notifySource, map[string]any{
		"workstream_id":      workstreamID,
		"released_resources": released,
	}))
	m.LogInfo("workstream cleaned up", "workstream_id", workstreamID, "released", released)
}

// Dispose stops the background loops, fails every waiting sync point, aborts
// all parked waiters and releases all timers. The manager must not be used
// afterwards.
func (m *Manager) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		_ = m.group.Wait()
	}

	m.partialSync.Dispose()

	// Drain every primitive wait queue regardless of which workstream parked.
	m.mu.RLock()
	for _, b := range m.barriers {
		b.Reset()
	}
	for _, s := range m.semaphores {
		s.Dispose()
	}
	for _, mx := range m.mutexes {
		mx.Dispose()
	}
	for _, l := range m.latches {
		l.Dispose()
	}
	m.mu.RUnlock()

	m.LogInfo("synchronization manager disposed")
}

// start launches the periodic detection and cleanup loops.
func (m *Manager) start() {
	if m.config.DetectionInterval == 0 && m.config.CleanupInterval == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	m.group = g

	if m.config.DetectionInterval > 0 {
		g.Go(func() error { return m.detectLoop(ctx) })
	}
	if m.config.CleanupInterval > 0 {
		g.Go(func() error { return m.cleanupLoop(ctx) })
	}
}

func (m *Manager) detectLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.config.DetectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.DetectDeadlocks()
		}
	}
}

func (m *Manager) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deadlocks := m.CleanupResolvedDeadlocks()
			points := m.CleanupCompletedSyncPoints()
			conflicts := m.conflicts.CleanupResolved(m.config.MaxCompletedAge)
			txs := m.transactions.CleanupFinished(m.config.MaxCompletedAge)
			if deadlocks+points+conflicts+txs > 0 {
				m.LogDebug("periodic cleanup", "deadlocks", deadlocks, "sync_points", points, "conflicts", conflicts, "transactions", txs)
			}
		}
	}
}

// handleVictim is the deadlock recovery hook: the victim's parked waits are
// force-released so its in-flight acquires resolve with core.ErrWaitAborted,
// and subscribers are told what happened.
func (m *Manager) handleVictim(action deadlock.VictimAction) {
	m.mu.RLock()
	for _, b := range m.barriers {
		b.RemoveWaiter(action.WorkstreamID)
	}
	for _, s := range m.semaphores {
		s.RemoveWaiter(action.WorkstreamID)
		if action.FullAbort {
			s.ReleaseAll(action.WorkstreamID)
		}
	}
	for _, mx := range m.mutexes {
		mx.RemoveWaiter(action.WorkstreamID)
	}
	for _, l := range m.latches {
		l.RemoveWaiter(action.WorkstreamID)
	}
	m.mu.RUnlock()

	m.metrics.DeadlockResolved(string(m.config.Strategy))
	m.notifier.Publish(core.NewNotification(core.NotifyDeadlockResolved, notifySource, map[string]any{
		"deadlock_id": action.DeadlockID,
		"victim":      action.WorkstreamID,
		"released":    action.ReleasedResources,
		"cancelled":   action.CancelledRequests,
		"full_abort":  action.FullAbort,
	}))
	m.notifier.Publish(core.NewNotification(core.NotifyWorkstreamAborted, notifySource, map[string]any{
		"workstream_id": action.WorkstreamID,
		"deadlock_id":   action.DeadlockID,
	}))
}

func (m *Manager) handleSyncPointComplete(info core.PartialSyncInfo) {
	m.metrics.SyncPointFinished(string(info.Status))
	m.notifier.Publish(core.NewNotification(core.NotifySyncPointCompleted, notifySource, map[string]any{
		"sync_point_id": info.ID,
		"status":        string(info.Status),
		"arrived":       info.Arrived,
	}))
}

func (m *Manager) handleConflictDetected(c core.ConflictInfo) {
	m.notifier.Publish(core.NewNotification(core.NotifyConflictDetected, notifySource, map[string]any{
		"conflict_id": c.ID,
		"type":        c.Type,
		"scope":       c.Scope,
		"severity":    string(c.Severity),
	}))
}

func (m *Manager) handleConflictResolved(c core.ConflictInfo) {
	m.metrics.ConflictFinished(string(c.Status))
	m.notifier.Publish(core.NewNotification(core.NotifyConflictResolved, notifySource, map[string]any{
		"conflict_id": c.ID,
		"status":      string(c.Status),
		"resolved_by": c.ResolvedBy,
	}))
}

func (m *Manager) handleTransactionFinished(tx core.Transaction) {
	m.metrics.TransactionFinished(string(tx.Status))
	m.notifier.Publish(core.NewNotification(core.NotifyTransactionFinished, notifySource, map[string]any{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
		"workstreams":    tx.Workstreams,
	}))
}
