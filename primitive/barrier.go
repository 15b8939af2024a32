package primitive

import (
	"context"
	"sync"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// Barrier releases all waiters only once a fixed number of distinct
// workstreams has arrived. After a release the barrier resets to a fresh
// generation so it can be reused for the next phase.
type Barrier struct {
	*core.LoggerAdapter

	parties   int
	onRelease func(generation int)

	mu         sync.Mutex
	generation int
	// waiters holds every parked channel of the current generation keyed by
	// workstream id. A re-registering id appends a second channel but still
	// counts once toward parties.
	waiters map[string][]chan error
}

// BarrierOptions configures a Barrier.
type BarrierOptions struct {
	Logger logging.Logger
	// OnRelease is invoked after each ordinary generation release with the
	// generation number that released.
	OnRelease func(generation int)
}

// NewBarrier creates a barrier for the given party count. parties must be at
// least one.
func NewBarrier(parties int, optFns ...func(o *BarrierOptions)) *Barrier {
	opts := BarrierOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if parties < 1 {
		parties = 1
	}
	return &Barrier{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		parties:       parties,
		onRelease:     opts.OnRelease,
		waiters:       make(map[string][]chan error),
	}
}

// Wait registers workstreamID in the current generation and blocks until
// parties distinct workstreams have registered. All waiters release
// atomically; the generation then increments and the queue clears. A second
// Wait by the same id within one generation does not count twice but still
// blocks until release.
func (b *Barrier) Wait(ctx context.Context, workstreamID string) error {
	ch := make(chan error, 1)

	b.mu.Lock()
	gen := b.generation
	b.waiters[workstreamID] = append(b.waiters[workstreamID], ch)
	if len(b.waiters) >= b.parties {
		b.releaseLocked(nil)
		b.mu.Unlock()
		return <-ch
	}
	b.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		b.abandon(gen, workstreamID, ch)
		return ctx.Err()
	}
}

// Reset force-clears the current generation. Pending waiters are abandoned
// with core.ErrBarrierReset; callers relying on the barrier's count must
// re-register. Use with care: a reset racing ordinary arrivals can strand a
// phase.
func (b *Barrier) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.waiters) > 0 {
		b.releaseLocked(core.ErrBarrierReset)
	}
}

// RemoveWaiter drops every pending wait by workstreamID from the current
// generation, resolving each with core.ErrWaitAborted.
func (b *Barrier) RemoveWaiter(workstreamID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans, ok := b.waiters[workstreamID]
	if !ok {
		return
	}
	delete(b.waiters, workstreamID)
	for _, ch := range chans {
		ch <- core.ErrWaitAborted
	}
}

// Waiting returns how many distinct workstreams are registered in the current
// generation.
func (b *Barrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

// Generation returns the current generation number, starting at zero.
func (b *Barrier) Generation() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Parties returns the configured party count.
func (b *Barrier) Parties() int { return b.parties }

// releaseLocked resolves every parked waiter with err, increments the
// generation and clears the queue. Caller holds b.mu.
func (b *Barrier) releaseLocked(err error) {
	for _, chans := range b.waiters {
		for _, ch := range chans {
			ch <- err
		}
	}
	b.waiters = make(map[string][]chan error)
	b.generation++
	if err == nil {
		b.LogDebug("barrier released", "generation", b.generation-1, "parties", b.parties)
		if b.onRelease != nil {
			b.onRelease(b.generation - 1)
		}
	}
}

// abandon removes one parked channel after a context cancellation, unless the
// generation already moved on (in which case the release already happened and
// the buffered send is simply dropped).
func (b *Barrier) abandon(gen int, workstreamID string, ch chan error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.generation != gen {
		return
	}
	chans := b.waiters[workstreamID]
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(chans) == 0 {
		delete(b.waiters, workstreamID)
	} else {
		b.waiters[workstreamID] = chans
	}
}
