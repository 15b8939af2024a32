package partial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/syncmesh/core"
)

func arrivedCount(m *Manager, pointID string) int {
	info, ok := m.Info(pointID)
	if !ok {
		return -1
	}
	return len(info.Arrived)
}

func TestManager_FullAttendanceCompletes(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	type outcome struct {
		result *core.PartialSyncResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := m.Wait(context.Background(), id, "a")
		ch <- outcome{r, err}
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	result, err := m.Wait(context.Background(), id, "b")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncComplete, result.Status)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Participating)
	assert.Empty(t, result.Missing)

	out := <-ch
	require.NoError(t, out.err)
	assert.Equal(t, core.PartialSyncComplete, out.result.Status)
}

func TestManager_NonExpectedArrivalsDoNotCount(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{Minimum: 1})
	require.NoError(t, err)

	// Callers outside the expected set park but neither complete the point
	// nor count toward the minimum.
	for _, ws := range []string{"x", "y"} {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := m.Wait(ctx, id, ws)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	info, ok := m.Info(id)
	require.True(t, ok)
	assert.Equal(t, core.PartialSyncWaiting, info.Status)
	assert.Empty(t, info.Arrived)

	zCh := make(chan *core.PartialSyncResult, 1)
	go func() {
		r, _ := m.Wait(context.Background(), id, "z")
		zCh <- r
	}()

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Wait(context.Background(), id, "a")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	result, err := m.Wait(context.Background(), id, "b")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncComplete, result.Status)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Participating)
	assert.Empty(t, result.Missing)
	require.NoError(t, <-errCh)

	zResult := <-zCh
	require.NotNil(t, zResult)
	assert.Equal(t, core.PartialSyncComplete, zResult.Status)
	assert.NotContains(t, zResult.Participating, "z")
}

func TestManager_PartialCompleteNeedsMinimumAndRequired(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b", "c", "d"}, Config{
		Minimum:  2,
		Required: []string{"a"},
	})
	require.NoError(t, err)

	errCh := make(chan error, 2)
	go func() {
		_, err := m.Wait(context.Background(), id, "b")
		errCh <- err
	}()
	go func() {
		_, err := m.Wait(context.Background(), id, "c")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 2 }, time.Second, time.Millisecond)

	// Two arrivals meet the minimum but the required workstream is missing.
	info, ok := m.Info(id)
	require.True(t, ok)
	assert.Equal(t, core.PartialSyncWaiting, info.Status)

	result, err := m.Wait(context.Background(), id, "a")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncPartialComplete, result.Status)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, result.Participating)
	assert.Equal(t, []string{"d"}, result.Missing)
	assert.True(t, result.MinimumMet)
	assert.True(t, result.RequiredMet)

	assert.NoError(t, <-errCh)
	assert.NoError(t, <-errCh)
}

func TestManager_RequiredAloneIsNotEnough(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b", "c"}, Config{
		Minimum:  2,
		Required: []string{"a"},
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Wait(context.Background(), id, "a")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	// The required workstream arrived but the minimum is unmet.
	info, _ := m.Info(id)
	assert.Equal(t, core.PartialSyncWaiting, info.Status)

	result, err := m.Wait(context.Background(), id, "b")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncPartialComplete, result.Status)
	assert.NoError(t, <-errCh)
}

func TestManager_ZeroMinimumDisablesPartialCompletion(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b", "c"}, Config{})
	require.NoError(t, err)

	errCh := make(chan error, 2)
	go func() {
		_, err := m.Wait(context.Background(), id, "a")
		errCh <- err
	}()
	go func() {
		_, err := m.Wait(context.Background(), id, "b")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 2 }, time.Second, time.Millisecond)

	info, _ := m.Info(id)
	assert.Equal(t, core.PartialSyncWaiting, info.Status)

	result, err := m.Wait(context.Background(), id, "c")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncComplete, result.Status)
	assert.NoError(t, <-errCh)
	assert.NoError(t, <-errCh)
}

func TestManager_MinimumFuncOverridesMinimum(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b", "c", "d"}, Config{
		Minimum:     4,
		MinimumFunc: func(expected int) int { return expected / 2 },
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Wait(context.Background(), id, "a")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	result, err := m.Wait(context.Background(), id, "b")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncPartialComplete, result.Status)
	assert.NoError(t, <-errCh)
}

func TestManager_TimeoutWithoutContinue(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	result, err := m.Wait(context.Background(), id, "a")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncTimedOut, result.Status)
	assert.Equal(t, []string{"a"}, result.Participating)
	assert.Equal(t, []string{"b"}, result.Missing)
}

func TestManager_TimeoutWithContinue(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{
		Timeout:           20 * time.Millisecond,
		ContinueOnTimeout: true,
	})
	require.NoError(t, err)

	result, err := m.Wait(context.Background(), id, "a")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncPartialComplete, result.Status)
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	cause := errors.New("pipeline aborted")
	resultCh := make(chan *core.PartialSyncResult, 1)
	go func() {
		r, _ := m.Wait(context.Background(), id, "a")
		resultCh <- r
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, m.Cancel(id, cause))

	result := <-resultCh
	assert.Equal(t, core.PartialSyncFailed, result.Status)
	assert.Equal(t, cause, result.Err)

	// Terminal points reject further cancellation.
	assert.ErrorIs(t, m.Cancel(id, nil), core.ErrTerminal)
}

func TestManager_LateCallGetsCachedResult(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a"}, Config{})
	require.NoError(t, err)

	first, err := m.Wait(context.Background(), id, "a")
	require.NoError(t, err)
	require.Equal(t, core.PartialSyncComplete, first.Status)

	late, err := m.Wait(context.Background(), id, "b")
	require.NoError(t, err)
	assert.Equal(t, first, late)

	info, ok := m.Info(id)
	require.True(t, ok)
	assert.Contains(t, info.Released, "b")
}

func TestManager_RemoveWorkstreamShrinksExpectedSet(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	resultCh := make(chan *core.PartialSyncResult, 1)
	go func() {
		r, _ := m.Wait(context.Background(), id, "a")
		resultCh <- r
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	// Dropping b leaves a as the full expected set.
	m.RemoveWorkstream("b")

	result := <-resultCh
	assert.Equal(t, core.PartialSyncComplete, result.Status)
	assert.Equal(t, []string{"a"}, result.Participating)
}

func TestManager_RemoveWorkstreamAbortsItsWaits(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b", "c"}, Config{})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Wait(context.Background(), id, "a")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	m.RemoveWorkstream("a")
	assert.ErrorIs(t, <-errCh, core.ErrWaitAborted)

	info, _ := m.Info(id)
	assert.Equal(t, core.PartialSyncWaiting, info.Status)
	assert.Equal(t, []string{"b", "c"}, info.Expected)
}

func TestManager_RemoveLastWorkstreamFailsPoint(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a"}, Config{})
	require.NoError(t, err)

	m.RemoveWorkstream("a")

	info, ok := m.Info(id)
	require.True(t, ok)
	assert.Equal(t, core.PartialSyncFailed, info.Status)
	require.NotNil(t, info.Result)
	assert.ErrorIs(t, info.Result.Err, core.ErrWaitAborted)
}

func TestManager_CreateValidation(t *testing.T) {
	m := NewManager()

	_, err := m.CreateSyncPoint(nil, Config{})
	assert.Error(t, err)

	_, err = m.CreateSyncPoint([]string{"a"}, Config{Minimum: -1})
	assert.Error(t, err)

	_, err = m.CreateSyncPoint([]string{"a"}, Config{Timeout: -time.Second})
	assert.Error(t, err)

	_, err = m.CreateSyncPoint([]string{"a"}, Config{Required: []string{"ghost"}})
	assert.Error(t, err)
}

func TestManager_WaitUnknownPoint(t *testing.T) {
	m := NewManager()
	_, err := m.Wait(context.Background(), "missing", "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestManager_ContextCancelLeavesPointWaiting(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Wait(ctx, id, "a")
		errCh <- err
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	info, _ := m.Info(id)
	assert.Equal(t, core.PartialSyncWaiting, info.Status)
}

func TestManager_OnCompleteHook(t *testing.T) {
	infoCh := make(chan core.PartialSyncInfo, 1)
	m := NewManager(func(o *Options) {
		o.OnComplete = func(info core.PartialSyncInfo) { infoCh <- info }
	})

	id, err := m.CreateSyncPoint([]string{"a"}, Config{})
	require.NoError(t, err)

	_, err = m.Wait(context.Background(), id, "a")
	require.NoError(t, err)

	info := <-infoCh
	assert.Equal(t, id, info.ID)
	assert.Equal(t, core.PartialSyncComplete, info.Status)
}

func TestManager_CleanupCompleted(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a"}, Config{})
	require.NoError(t, err)

	_, err = m.Wait(context.Background(), id, "a")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, m.CleanupCompleted(time.Millisecond))

	_, ok := m.Info(id)
	assert.False(t, ok)
}

func TestManager_Dispose(t *testing.T) {
	m := NewManager()
	id, err := m.CreateSyncPoint([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	resultCh := make(chan *core.PartialSyncResult, 1)
	go func() {
		r, _ := m.Wait(context.Background(), id, "a")
		resultCh <- r
	}()
	require.Eventually(t, func() bool { return arrivedCount(m, id) == 1 }, time.Second, time.Millisecond)

	m.Dispose()

	result := <-resultCh
	assert.Equal(t, core.PartialSyncFailed, result.Status)
	assert.ErrorIs(t, result.Err, core.ErrDisposed)
}
