package primitive

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/syncmesh/core"
)

// Mutex is a single-permit semaphore with holder tracking. Only the holder may
// unlock; an unlock by any other workstream fails with core.ErrNotHolder
// rather than being silently ignored, so misuse surfaces at the call site.
type Mutex struct {
	sem *Semaphore

	mu     sync.Mutex
	holder string
}

// NewMutex creates an unlocked mutex.
func NewMutex(optFns ...func(o *SemaphoreOptions)) *Mutex {
	return &Mutex{sem: NewSemaphore(1, optFns...)}
}

// Lock blocks until the mutex is free, then records workstreamID as holder.
func (m *Mutex) Lock(ctx context.Context, workstreamID string) error {
	if err := m.sem.Acquire(ctx, workstreamID, 1); err != nil {
		return err
	}
	m.setHolder(workstreamID)
	return nil
}

// TryLock attempts a non-blocking lock, reporting whether it succeeded.
func (m *Mutex) TryLock(workstreamID string) bool {
	if !m.sem.TryAcquire(workstreamID, 1) {
		return false
	}
	m.setHolder(workstreamID)
	return true
}

// Unlock releases the mutex. Only the current holder may unlock.
func (m *Mutex) Unlock(workstreamID string) error {
	m.mu.Lock()
	if m.holder != workstreamID {
		holder := m.holder
		m.mu.Unlock()
		return fmt.Errorf("unlock by %q, held by %q: %w", workstreamID, holder, core.ErrNotHolder)
	}
	m.holder = ""
	m.mu.Unlock()
	return m.sem.Release(workstreamID, 1)
}

// IsLocked reports whether any workstream holds the mutex.
func (m *Mutex) IsLocked() bool {
	return m.sem.Available() == 0
}

// IsLockedBy reports whether workstreamID currently holds the mutex.
func (m *Mutex) IsLockedBy(workstreamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder == workstreamID && m.holder != ""
}

// Holder returns the current holder id, or the empty string when unlocked.
func (m *Mutex) Holder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder
}

// Waiting returns the number of parked Lock calls.
func (m *Mutex) Waiting() int { return m.sem.Waiting() }

// RemoveWaiter force-releases the workstream: queued Lock calls resolve with
// core.ErrWaitAborted and, if the workstream holds the mutex, it is unlocked
// so the next waiter proceeds.
func (m *Mutex) RemoveWaiter(workstreamID string) {
	m.sem.RemoveWaiter(workstreamID)
	m.mu.Lock()
	if m.holder == workstreamID {
		m.holder = ""
		m.mu.Unlock()
		m.sem.ReleaseAll(workstreamID)
		return
	}
	m.mu.Unlock()
}

// Dispose rejects every queued Lock with core.ErrDisposed. The holder, if any,
// keeps the mutex.
func (m *Mutex) Dispose() {
	m.sem.Dispose()
}

func (m *Mutex) setHolder(workstreamID string) {
	m.mu.Lock()
	m.holder = workstreamID
	m.mu.Unlock()
}
