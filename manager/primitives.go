package manager

import (
	"fmt"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/exchange"
	"github.com/hupe1980/syncmesh/primitive"
)

// CreateBarrier creates (or returns the existing) named barrier.
func (m *Manager) CreateBarrier(name string, parties int) *primitive.Barrier {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.barriers[name]; ok {
		return b
	}
	b := primitive.NewBarrier(parties, func(o *primitive.BarrierOptions) {
		o.Logger = m.Logger()
		o.OnRelease = func(int) { m.metrics.BarrierReleased() }
	})
	m.barriers[name] = b
	return b
}

// GetBarrier returns the named barrier.
func (m *Manager) GetBarrier(name string) (*primitive.Barrier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.barriers[name]
	if !ok {
		return nil, fmt.Errorf("barrier %q: %w", name, core.ErrNotFound)
	}
	return b, nil
}

// CreateSemaphore creates (or returns the existing) named semaphore.
func (m *Manager) CreateSemaphore(name string, permits int) *primitive.Semaphore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.semaphores[name]; ok {
		return s
	}
	s := primitive.NewSemaphore(permits, func(o *primitive.SemaphoreOptions) {
		o.Logger = m.Logger()
	})
	m.semaphores[name] = s
	return s
}

// GetSemaphore returns the named semaphore.
func (m *Manager) GetSemaphore(name string) (*primitive.Semaphore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.semaphores[name]
	if !ok {
		return nil, fmt.Errorf("semaphore %q: %w", name, core.ErrNotFound)
	}
	return s, nil
}

// CreateMutex creates (or returns the existing) named mutex.
func (m *Manager) CreateMutex(name string) *primitive.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mx, ok := m.mutexes[name]; ok {
		return mx
	}
	mx := primitive.NewMutex(func(o *primitive.SemaphoreOptions) {
		o.Logger = m.Logger()
	})
	m.mutexes[name] = mx
	return mx
}

// GetMutex returns the named mutex.
func (m *Manager) GetMutex(name string) (*primitive.Mutex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mx, ok := m.mutexes[name]
	if !ok {
		return nil, fmt.Errorf("mutex %q: %w", name, core.ErrNotFound)
	}
	return mx, nil
}

// CreateCountdownLatch creates (or returns the existing) named latch.
func (m *Manager) CreateCountdownLatch(name string, count int) *primitive.CountdownLatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.latches[name]; ok {
		return l
	}
	l := primitive.NewCountdownLatch(count, func(o *primitive.LatchOptions) {
		o.Logger = m.Logger()
	})
	m.latches[name] = l
	return l
}

// GetCountdownLatch returns the named latch.
func (m *Manager) GetCountdownLatch(name string) (*primitive.CountdownLatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.latches[name]
	if !ok {
		return nil, fmt.Errorf("latch %q: %w", name, core.ErrNotFound)
	}
	return l, nil
}

// CreateDataExchangeChannel creates (or returns the existing) named channel.
// An existing channel with a different mode is an error.
func (m *Manager) CreateDataExchangeChannel(id string, mode exchange.Mode) (*exchange.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[id]; ok {
		if ch.Mode() != mode {
			return nil, fmt.Errorf("channel %q exists with mode %q", id, ch.Mode())
		}
		return ch, nil
	}
	ch := exchange.NewChannel(id, mode, func(o *exchange.ChannelOptions) {
		o.Logger = m.Logger()
	})
	m.channels[id] = ch
	return ch, nil
}

// GetDataExchangeChannel returns the named channel.
func (m *Manager) GetDataExchangeChannel(id string) (*exchange.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", id, core.ErrNotFound)
	}
	return ch, nil
}
