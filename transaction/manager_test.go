package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/syncmesh/core"
)

func TestManager_CommitExecutesInOrder(t *testing.T) {
	m := NewManager()
	txID := m.Begin([]string{"w1"})

	var order []string
	step := func(name string) core.OperationFunc {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	require.NoError(t, m.AddOperation(txID, "acquire", "r1", nil, step("op1"), nil))
	require.NoError(t, m.AddOperation(txID, "acquire", "r2", nil, step("op2"), nil))
	require.NoError(t, m.AddOperation(txID, "notify", "ch1", nil, step("op3"), nil))

	require.NoError(t, m.Commit(context.Background(), txID))
	assert.Equal(t, []string{"op1", "op2", "op3"}, order)

	tx, ok := m.Transaction(txID)
	require.True(t, ok)
	assert.Equal(t, core.TransactionCommitted, tx.Status)
	require.NotNil(t, tx.EndTime)
}

func TestManager_FailureRollsBackInReverse(t *testing.T) {
	m := NewManager()
	txID := m.Begin([]string{"w1", "w2"})

	var trace []string
	exec := func(name string, err error) core.OperationFunc {
		return func(context.Context) error {
			trace = append(trace, "exec:"+name)
			return err
		}
	}
	undo := func(name string) core.OperationFunc {
		return func(context.Context) error {
			trace = append(trace, "undo:"+name)
			return nil
		}
	}

	boom := errors.New("resource busy")
	require.NoError(t, m.AddOperation(txID, "acquire", "r1", nil, exec("op1", nil), undo("op1")))
	require.NoError(t, m.AddOperation(txID, "acquire", "r2", nil, exec("op2", nil), undo("op2")))
	require.NoError(t, m.AddOperation(txID, "acquire", "r3", nil, exec("op3", boom), undo("op3")))

	err := m.Commit(context.Background(), txID)
	require.ErrorIs(t, err, boom)

	// The failed operation is not undone; the executed prefix unwinds in
	// reverse order.
	assert.Equal(t, []string{"exec:op1", "exec:op2", "exec:op3", "undo:op2", "undo:op1"}, trace)

	tx, _ := m.Transaction(txID)
	assert.Equal(t, core.TransactionRolledBack, tx.Status)
}

func TestManager_RollbackSkipsOperationsThatNeverExecuted(t *testing.T) {
	m := NewManager()
	txID := m.Begin([]string{"w1"})

	var undone []string
	undo := func(name string) core.OperationFunc {
		return func(context.Context) error {
			undone = append(undone, name)
			return nil
		}
	}

	// op1 has no Execute, so its Undo must not run when a later failure
	// unwinds the transaction.
	require.NoError(t, m.AddOperation(txID, "marker", "t1", nil, nil, undo("op1")))
	require.NoError(t, m.AddOperation(txID, "a", "t2", nil,
		func(context.Context) error { return nil }, undo("op2")))
	require.NoError(t, m.AddOperation(txID, "b", "t3", nil,
		func(context.Context) error { return errors.New("boom") }, undo("op3")))

	require.Error(t, m.Commit(context.Background(), txID))
	assert.Equal(t, []string{"op2"}, undone)
}

func TestManager_UndoFailureDoesNotStopRollback(t *testing.T) {
	m := NewManager()
	txID := m.Begin([]string{"w1"})

	var undone []string
	require.NoError(t, m.AddOperation(txID, "a", "t1", nil,
		func(context.Context) error { return nil },
		func(context.Context) error {
			undone = append(undone, "op1")
			return nil
		}))
	require.NoError(t, m.AddOperation(txID, "b", "t2", nil,
		func(context.Context) error { return nil },
		func(context.Context) error {
			undone = append(undone, "op2")
			return errors.New("undo failed")
		}))
	require.NoError(t, m.AddOperation(txID, "c", "t3", nil,
		func(context.Context) error { return errors.New("boom") },
		nil))

	require.Error(t, m.Commit(context.Background(), txID))
	assert.Equal(t, []string{"op2", "op1"}, undone)

	tx, _ := m.Transaction(txID)
	assert.Equal(t, core.TransactionRolledBack, tx.Status)
}

func TestManager_ManualRollback(t *testing.T) {
	m := NewManager()
	txID := m.Begin([]string{"w1"})

	executed := false
	require.NoError(t, m.AddOperation(txID, "a", "t1", nil,
		func(context.Context) error {
			executed = true
			return nil
		}, nil))

	require.NoError(t, m.Rollback(txID))
	assert.False(t, executed)

	tx, _ := m.Transaction(txID)
	assert.Equal(t, core.TransactionRolledBack, tx.Status)
}

func TestManager_FinishedTransactionsAreSealed(t *testing.T) {
	m := NewManager()
	txID := m.Begin([]string{"w1"})
	require.NoError(t, m.Commit(context.Background(), txID))

	err := m.AddOperation(txID, "a", "t1", nil, nil, nil)
	assert.ErrorIs(t, err, core.ErrTerminal)
	assert.ErrorIs(t, m.Commit(context.Background(), txID), core.ErrTerminal)
	assert.ErrorIs(t, m.Rollback(txID), core.ErrTerminal)
}

func TestManager_UnknownTransaction(t *testing.T) {
	m := NewManager()

	assert.ErrorIs(t, m.AddOperation("missing", "a", "t", nil, nil, nil), core.ErrNotFound)
	assert.ErrorIs(t, m.Commit(context.Background(), "missing"), core.ErrNotFound)
	assert.ErrorIs(t, m.Rollback("missing"), core.ErrNotFound)
}

func TestManager_OnFinishedHook(t *testing.T) {
	var finished []core.Transaction
	m := NewManager(func(o *Options) {
		o.OnFinished = func(tx core.Transaction) { finished = append(finished, tx) }
	})

	txID := m.Begin([]string{"w1"})
	require.NoError(t, m.Commit(context.Background(), txID))

	require.Len(t, finished, 1)
	assert.Equal(t, txID, finished[0].ID)
	assert.Equal(t, core.TransactionCommitted, finished[0].Status)
}

func TestManager_CleanupFinished(t *testing.T) {
	m := NewManager()

	committed := m.Begin([]string{"w1"})
	require.NoError(t, m.Commit(context.Background(), committed))
	pending := m.Begin([]string{"w2"})

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, m.CleanupFinished(time.Millisecond))

	_, ok := m.Transaction(committed)
	assert.False(t, ok)
	_, ok = m.Transaction(pending)
	assert.True(t, ok)
}
