package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// Options configures a Manager.
type Options struct {
	// OnFinished is invoked after a transaction commits or rolls back.
	OnFinished func(tx core.Transaction)
	// Logger used for structured transaction logging. Defaults to NoOp.
	Logger logging.Logger
}

// Manager owns every transaction of one coordination domain. It is safe for
// concurrent use; operation funcs run outside the manager lock.
type Manager struct {
	*core.LoggerAdapter

	onFinished func(tx core.Transaction)

	mu           sync.Mutex
	transactions map[string]*core.Transaction
}

// NewManager constructs an empty transaction manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		onFinished:    opts.OnFinished,
		transactions:  make(map[string]*core.Transaction),
	}
}

// Begin opens a pending transaction on behalf of the workstreams and returns
// its id.
func (m *Manager) Begin(workstreams []string) string {
	tx := &core.Transaction{
		ID:          core.NewID(),
		Workstreams: append([]string(nil), workstreams...),
		Status:      core.TransactionPending,
		StartTime:   time.Now().UTC(),
	}
	m.mu.Lock()
	m.transactions[tx.ID] = tx
	m.mu.Unlock()
	m.LogDebug("transaction started", "transaction_id", tx.ID, "workstreams", workstreams)
	return tx.ID
}

// AddOperation appends an operation descriptor to a pending transaction
// without executing it.
func (m *Manager) AddOperation(txID, opType, target string, params map[string]any, execute, undo core.OperationFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[txID]
	if !ok {
		return fmt.Errorf("transaction %q: %w", txID, core.ErrNotFound)
	}
	if tx.Status != core.TransactionPending {
		return fmt.Errorf("transaction %q is %s: %w", txID, tx.Status, core.ErrTerminal)
	}
	tx.Operations = append(tx.Operations, core.Operation{
		Type:    opType,
		Target:  target,
		Params:  params,
		Execute: execute,
		Undo:    undo,
	})
	return nil
}

// Commit executes the transaction's operations in append order. On the first
// execute failure, every previously executed operation is undone in reverse
// order and the transaction is rolled back; the triggering error is returned.
func (m *Manager) Commit(ctx context.Context, txID string) error {
	m.mu.Lock()
	tx, ok := m.transactions[txID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("transaction %q: %w", txID, core.ErrNotFound)
	}
	if tx.Status != core.TransactionPending {
		m.mu.Unlock()
		return fmt.Errorf("transaction %q is %s: %w", txID, tx.Status, core.ErrTerminal)
	}
	ops := append([]core.Operation(nil), tx.Operations...)
	m.mu.Unlock()

	start := time.Now()
	var execErr error
	var executed []core.Operation
	for i, op := range ops {
		if op.Execute == nil {
			continue
		}
		if err := op.Execute(ctx); err != nil {
			execErr = fmt.Errorf("operation %d (%s on %s): %w", i, op.Type, op.Target, err)
			break
		}
		executed = append(executed, op)
	}

	if execErr != nil {
		m.rollback(ctx, txID, executed)
		m.finish(txID, core.TransactionRolledBack)
		m.LogError("transaction rolled back", "transaction_id", txID, "operations", len(ops), "duration", time.Since(start), "error", execErr)
		return execErr
	}

	m.finish(txID, core.TransactionCommitted)
	m.LogInfo("transaction committed", "transaction_id", txID, "operations", len(ops), "duration", time.Since(start))
	return nil
}

// Rollback manually aborts a pending transaction, undoing nothing since no
// operation has executed yet.
func (m *Manager) Rollback(txID string) error {
	m.mu.Lock()
	tx, ok := m.transactions[txID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("transaction %q: %w", txID, core.ErrNotFound)
	}
	if tx.Status != core.TransactionPending {
		m.mu.Unlock()
		return fmt.Errorf("transaction %q is %s: %w", txID, tx.Status, core.ErrTerminal)
	}
	m.mu.Unlock()

	m.finish(txID, core.TransactionRolledBack)
	return nil
}

// Transaction returns a snapshot of one transaction.
func (m *Manager) Transaction(txID string) (*core.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[txID]
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

// CleanupFinished drops committed and rolled-back transactions older than
// maxAge and returns how many were removed.
func (m *Manager) CleanupFinished(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, tx := range m.transactions {
		if tx.Status != core.TransactionPending && tx.EndTime != nil && tx.EndTime.Before(cutoff) {
			delete(m.transactions, id)
			removed++
		}
	}
	return removed
}

// rollback undoes the executed operations in reverse order. Undo failures are
// logged and swallowed so the pass always completes.
func (m *Manager) rollback(ctx context.Context, txID string, executed []core.Operation) {
	for i := len(executed) - 1; i >= 0; i-- {
		op := executed[i]
		if op.Undo == nil {
			continue
		}
		if err := op.Undo(ctx); err != nil {
			m.LogWarn("undo failed during rollback", "transaction_id", txID, "operation", i, "type", op.Type, "target", op.Target, "error", err)
		}
	}
}

func (m *Manager) finish(txID string, status core.TransactionStatus) {
	m.mu.Lock()
	tx, ok := m.transactions[txID]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	tx.Status = status
	tx.EndTime = &now
	snapshot := tx.Clone()
	m.mu.Unlock()

	if m.onFinished != nil {
		m.onFinished(*snapshot)
	}
}
