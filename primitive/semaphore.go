package primitive

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// semWaiter is one parked acquire request.
type semWaiter struct {
	workstreamID string
	n            int
	ch           chan error
}

// Semaphore is a counting semaphore tracking cumulative permits held per
// workstream. Blocked acquirers wake in FIFO arrival order; a waiter whose
// request cannot yet be satisfied is skipped, not a head-of-line blocker.
//
// Invariant: available + Σ held == permits, at every instant.
type Semaphore struct {
	*core.LoggerAdapter

	permits int

	mu        sync.Mutex
	available int
	held      map[string]int
	queue     []*semWaiter
}

// SemaphoreOptions configures a Semaphore.
type SemaphoreOptions struct {
	Logger logging.Logger
}

// NewSemaphore creates a semaphore with the given permit count. permits below
// one is clamped to one.
func NewSemaphore(permits int, optFns ...func(o *SemaphoreOptions)) *Semaphore {
	opts := SemaphoreOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if permits < 1 {
		permits = 1
	}
	return &Semaphore{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		permits:       permits,
		available:     permits,
		held:          make(map[string]int),
	}
}

// Acquire blocks until n permits are free, then decrements the available count
// and adds n to the workstream's cumulative held total. n must be positive and
// no larger than the total permit count.
func (s *Semaphore) Acquire(ctx context.Context, workstreamID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("acquire %d: %w", n, core.ErrInvalidPermits)
	}
	if n > s.permits {
		return fmt.Errorf("acquire %d exceeds %d permits: %w", n, s.permits, core.ErrInvalidPermits)
	}

	s.mu.Lock()
	if len(s.queue) == 0 && s.available >= n {
		s.grantLocked(workstreamID, n)
		s.mu.Unlock()
		return nil
	}
	w := &semWaiter{workstreamID: workstreamID, n: n, ch: make(chan error, 1)}
	s.queue = append(s.queue, w)
	s.mu.Unlock()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		s.dequeue(w)
		return ctx.Err()
	}
}

// TryAcquire attempts a non-blocking acquire, reporting whether it succeeded.
// Invalid permit counts report false.
func (s *Semaphore) TryAcquire(workstreamID string, n int) bool {
	if n <= 0 || n > s.permits {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 || s.available < n {
		return false
	}
	s.grantLocked(workstreamID, n)
	return true
}

// Release returns n permits from the workstream's held total and wakes any
// now-satisfiable waiters in FIFO order. Releasing more than held is a
// structural error.
func (s *Semaphore) Release(workstreamID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("release %d: %w", n, core.ErrInvalidPermits)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[workstreamID] < n {
		return fmt.Errorf("workstream %q holds %d of %d released permits: %w",
			workstreamID, s.held[workstreamID], n, core.ErrInvalidPermits)
	}
	s.held[workstreamID] -= n
	if s.held[workstreamID] == 0 {
		delete(s.held, workstreamID)
	}
	s.available += n
	s.wakeLocked()
	return nil
}

// ReleaseAll force-returns every permit held by the workstream, waking
// waiters. Returns the number of permits released. Used by workstream cleanup
// and deadlock recovery.
func (s *Semaphore) ReleaseAll(workstreamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.held[workstreamID]
	if n == 0 {
		return 0
	}
	delete(s.held, workstreamID)
	s.available += n
	s.wakeLocked()
	return n
}

// RemoveWaiter drops every queued acquire by the workstream, resolving each
// with core.ErrWaitAborted.
func (s *Semaphore) RemoveWaiter(workstreamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	for _, w := range s.queue {
		if w.workstreamID == workstreamID {
			w.ch <- core.ErrWaitAborted
			continue
		}
		kept = append(kept, w)
	}
	s.queue = kept
}

// Dispose rejects every queued acquire with core.ErrDisposed. Permits already
// held stay with their holders.
func (s *Semaphore) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.queue {
		w.ch <- core.ErrDisposed
	}
	s.queue = nil
}

// Available returns the current free permit count.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Held returns the cumulative permits held by the workstream.
func (s *Semaphore) Held(workstreamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[workstreamID]
}

// Waiting returns the number of parked acquire requests.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Permits returns the configured total permit count.
func (s *Semaphore) Permits() int { return s.permits }

func (s *Semaphore) grantLocked(workstreamID string, n int) {
	s.available -= n
	s.held[workstreamID] += n
}

// wakeLocked grants queued requests in arrival order, skipping waiters whose
// request still exceeds the available count. Caller holds s.mu.
func (s *Semaphore) wakeLocked() {
	kept := s.queue[:0]
	for _, w := range s.queue {
		if w.n <= s.available {
			s.grantLocked(w.workstreamID, w.n)
			w.ch <- nil
			continue
		}
		kept = append(kept, w)
	}
	s.queue = kept
}

// dequeue removes a cancelled waiter. If the grant raced the cancellation the
// permits are returned so the invariant holds.
func (s *Semaphore) dequeue(w *semWaiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queue {
		if q == w {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
	select {
	case err := <-w.ch:
		if err == nil {
			s.held[w.workstreamID] -= w.n
			if s.held[w.workstreamID] <= 0 {
				delete(s.held, w.workstreamID)
			}
			s.available += w.n
			s.wakeLocked()
		}
	default:
	}
}
