package primitive

import (
	"context"
	"sync"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// latchWaiter is one parked Await call.
type latchWaiter struct {
	workstreamID string
	ch           chan error
}

// CountdownLatch blocks awaiting workstreams until its count reaches zero.
// Each CountDown call decrements by one regardless of caller; the zero
// transition releases every current waiter before any future Await returns,
// and the latch never re-arms. A latch constructed with count zero starts
// already completed.
type CountdownLatch struct {
	*core.LoggerAdapter

	mu      sync.Mutex
	count   int
	waiters []*latchWaiter
}

// LatchOptions configures a CountdownLatch.
type LatchOptions struct {
	Logger logging.Logger
}

// NewCountdownLatch creates a latch with the given count. A negative count is
// clamped to zero, yielding an already-completed latch.
func NewCountdownLatch(count int, optFns ...func(o *LatchOptions)) *CountdownLatch {
	opts := LatchOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if count < 0 {
		count = 0
	}
	return &CountdownLatch{LoggerAdapter: core.NewLoggerAdapter(opts.Logger), count: count}
}

// CountDown decrements the latch by one on behalf of workstreamID. Calls on an
// already-completed latch are no-ops.
func (l *CountdownLatch) CountDown(workstreamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	l.LogDebug("latch count down", "workstream_id", workstreamID, "remaining", l.count)
	if l.count == 0 {
		l.releaseLocked()
	}
}

// CountDownAll drains the remaining count in one step, completing the latch.
func (l *CountdownLatch) CountDownAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count = 0
	l.releaseLocked()
}

// Await blocks workstreamID until the count reaches zero. A completed latch
// resolves immediately.
func (l *CountdownLatch) Await(ctx context.Context, workstreamID string) error {
	l.mu.Lock()
	if l.count == 0 {
		l.mu.Unlock()
		return nil
	}
	w := &latchWaiter{workstreamID: workstreamID, ch: make(chan error, 1)}
	l.waiters = append(l.waiters, w)
	l.mu.Unlock()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		l.dequeue(w)
		return ctx.Err()
	}
}

// Count returns the remaining count.
func (l *CountdownLatch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Completed reports whether the count has reached zero.
func (l *CountdownLatch) Completed() bool { return l.Count() == 0 }

// Waiting returns the number of parked Await calls.
func (l *CountdownLatch) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// RemoveWaiter drops every parked Await by the workstream, resolving each with
// core.ErrWaitAborted.
func (l *CountdownLatch) RemoveWaiter(workstreamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.waiters[:0]
	for _, w := range l.waiters {
		if w.workstreamID == workstreamID {
			w.ch <- core.ErrWaitAborted
			continue
		}
		kept = append(kept, w)
	}
	l.waiters = kept
}

// Dispose rejects every parked Await with core.ErrDisposed. The count is left
// untouched.
func (l *CountdownLatch) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.waiters {
		w.ch <- core.ErrDisposed
	}
	l.waiters = nil
}

func (l *CountdownLatch) releaseLocked() {
	for _, w := range l.waiters {
		w.ch <- nil
	}
	l.waiters = nil
}

func (l *CountdownLatch) dequeue(w *latchWaiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, q := range l.waiters {
		if q == w {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}
