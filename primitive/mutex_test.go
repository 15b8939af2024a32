package primitive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/syncmesh/core"
)

func TestMutex_LockUnlock(t *testing.T) {
	m := NewMutex()
	ctx := context.Background()

	require.NoError(t, m.Lock(ctx, "w1"))
	assert.True(t, m.IsLocked())
	assert.True(t, m.IsLockedBy("w1"))
	assert.Equal(t, "w1", m.Holder())

	require.NoError(t, m.Unlock("w1"))
	assert.False(t, m.IsLocked())
	assert.Empty(t, m.Holder())
}

func TestMutex_UnlockByNonHolder(t *testing.T) {
	m := NewMutex()
	require.NoError(t, m.Lock(context.Background(), "w1"))

	err := m.Unlock("w2")
	assert.ErrorIs(t, err, core.ErrNotHolder)
	assert.True(t, m.IsLockedBy("w1"))
}

func TestMutex_UnlockWhenFree(t *testing.T) {
	m := NewMutex()
	assert.ErrorIs(t, m.Unlock("w1"), core.ErrNotHolder)
}

func TestMutex_TryLock(t *testing.T) {
	m := NewMutex()

	assert.True(t, m.TryLock("w1"))
	assert.False(t, m.TryLock("w2"))

	require.NoError(t, m.Unlock("w1"))
	assert.True(t, m.TryLock("w2"))
}

func TestMutex_HandoffToWaiter(t *testing.T) {
	m := NewMutex()
	ctx := context.Background()
	require.NoError(t, m.Lock(ctx, "w1"))

	errCh := make(chan error, 1)
	go func() { errCh <- m.Lock(ctx, "w2") }()
	require.Eventually(t, func() bool { return m.Waiting() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, m.Unlock("w1"))
	assert.NoError(t, <-errCh)
	assert.Equal(t, "w2", m.Holder())
}

func TestMutex_RemoveWaiter(t *testing.T) {
	m := NewMutex()
	ctx := context.Background()
	require.NoError(t, m.Lock(ctx, "w1"))

	waiterCh := make(chan error, 1)
	go func() { waiterCh <- m.Lock(ctx, "w2") }()
	require.Eventually(t, func() bool { return m.Waiting() == 1 }, time.Second, time.Millisecond)

	m.RemoveWaiter("w2")
	assert.ErrorIs(t, <-waiterCh, core.ErrWaitAborted)

	// Removing the holder force-unlocks.
	m.RemoveWaiter("w1")
	assert.False(t, m.IsLocked())
}

func TestMutex_RemoveHolderHandsOff(t *testing.T) {
	m := NewMutex()
	ctx := context.Background()
	require.NoError(t, m.Lock(ctx, "w1"))

	errCh := make(chan error, 1)
	go func() { errCh <- m.Lock(ctx, "w2") }()
	require.Eventually(t, func() bool { return m.Waiting() == 1 }, time.Second, time.Millisecond)

	m.RemoveWaiter("w1")
	assert.NoError(t, <-errCh)
	assert.Equal(t, "w2", m.Holder())
}

func TestMutex_DisposeRejectsQueuedWaiters(t *testing.T) {
	m := NewMutex()
	require.NoError(t, m.Lock(context.Background(), "w1"))

	errCh := make(chan error, 1)
	go func() { errCh <- m.Lock(context.Background(), "w2") }()
	require.Eventually(t, func() bool { return m.Waiting() == 1 }, time.Second, time.Millisecond)

	m.Dispose()
	assert.ErrorIs(t, <-errCh, core.ErrDisposed)
	assert.Equal(t, "w1", m.Holder())
}
