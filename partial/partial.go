package partial

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// Config is the immutable completion policy of a sync point.
type Config struct {
	// Minimum is the participant threshold for PARTIAL_COMPLETE. Zero (with
	// no MinimumFunc) disables partial completion: only full attendance,
	// timeout or cancellation terminate the point.
	Minimum int `validate:"gte=0"`

	// MinimumFunc, when set, computes the threshold from the expected count
	// and takes precedence over Minimum.
	MinimumFunc func(expected int) int `validate:"-"`

	// Required lists workstreams that must arrive before PARTIAL_COMPLETE,
	// regardless of how many others have.
	Required []string

	// ContinueOnTimeout turns a timeout while WAITING into PARTIAL_COMPLETE
	// instead of TIMED_OUT.
	ContinueOnTimeout bool

	// Timeout bounds how long the point stays WAITING. Zero disables the
	// timer.
	Timeout time.Duration `validate:"gte=0"`
}

// pointWaiter is one parked Wait call.
type pointWaiter struct {
	workstreamID string
	ch           chan waitOutcome
}

type waitOutcome struct {
	result *core.PartialSyncResult
	err    error
}

// syncPoint is the detector-owned state of one rendezvous.
type syncPoint struct {
	id        string
	expected  []string
	arrived   []string
	released  []string
	status    core.PartialSyncStatus
	cfg       Config
	result    *core.PartialSyncResult
	waiters   []*pointWaiter
	timer     *time.Timer
	createdAt time.Time
	cancelErr error
}

// Options configures a Manager.
type Options struct {
	// OnComplete is invoked after a point reaches a terminal state.
	OnComplete func(info core.PartialSyncInfo)
	// Logger used for structured sync-point logging. Defaults to NoOp.
	Logger logging.Logger
}

// Manager owns every sync point of one coordination domain.
type Manager struct {
	*core.LoggerAdapter

	onComplete func(info core.PartialSyncInfo)
	validate   *validator.Validate

	mu     sync.Mutex
	points map[string]*syncPoint
}

// NewManager constructs an empty sync-point manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		onComplete:    opts.OnComplete,
		validate:      validator.New(),
		points:        make(map[string]*syncPoint),
	}
}

// CreateSyncPoint creates a WAITING point over the expected workstreams and
// returns its id. The config is validated and immutable after creation.
func (m *Manager) CreateSyncPoint(expected []string, cfg Config) (string, error) {
	if len(expected) == 0 {
		return "", fmt.Errorf("sync point requires at least one expected workstream")
	}
	if err := m.validate.Struct(cfg); err != nil {
		return "", fmt.Errorf("invalid sync point config: %w", err)
	}
	for _, req := range cfg.Required {
		if !slices.Contains(expected, req) {
			return "", fmt.Errorf("required workstream %q not in expected set", req)
		}
	}

	p := &syncPoint{
		id:        core.NewID(),
		expected:  append([]string(nil), expected...),
		status:    core.PartialSyncWaiting,
		cfg:       cfg,
		createdAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.points[p.id] = p
	if cfg.Timeout > 0 {
		p.timer = time.AfterFunc(cfg.Timeout, func() { m.timeout(p.id) })
	}
	m.mu.Unlock()

	m.LogDebug("sync point created", "sync_point_id", p.id, "expected", expected)
	return p.id, nil
}

// Wait registers the workstream's arrival and blocks until the point reaches a
// terminal state. A late call on an already-terminal point returns the cached
// result immediately.
func (m *Manager) Wait(ctx context.Context, pointID, workstreamID string) (*core.PartialSyncResult, error) {
	m.mu.Lock()
	p, ok := m.points[pointID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("sync point %q: %w", pointID, core.ErrNotFound)
	}

	if p.status.Terminal() {
		if !slices.Contains(p.released, workstreamID) {
			p.released = append(p.released, workstreamID)
		}
		result := p.result
		m.mu.Unlock()
		return result, nil
	}

	// Arrivals from workstreams outside the expected set park like any other
	// caller but count toward neither completion condition.
	if slices.Contains(p.expected, workstreamID) && !slices.Contains(p.arrived, workstreamID) {
		p.arrived = append(p.arrived, workstreamID)
	}

	if done := m.evaluateLocked(p); done != nil {
		m.mu.Unlock()
		done()
		return p.result, nil
	}

	w := &pointWaiter{workstreamID: workstreamID, ch: make(chan waitOutcome, 1)}
	p.waiters = append(p.waiters, w)
	m.mu.Unlock()

	select {
	case out := <-w.ch:
		return out.result, out.err
	case <-ctx.Done():
		m.dequeue(p, w)
		return nil, ctx.Err()
	}
}

// Cancel moves a WAITING point to FAILED, carrying an optional error to every
// waiter. Cancelling a terminal point is rejected.
func (m *Manager) Cancel(pointID string, cause error) error {
	m.mu.Lock()
	p, ok := m.points[pointID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("sync point %q: %w", pointID, core.ErrNotFound)
	}
	if p.status.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("sync point %q: %w", pointID, core.ErrTerminal)
	}
	p.cancelErr = cause
	done := m.completeLocked(p, core.PartialSyncFailed)
	m.mu.Unlock()
	done()
	return nil
}

// RemoveWorkstream removes the workstream from every non-terminal point it
// touches: its arrival no longer counts, its parked waits resolve with
// core.ErrWaitAborted and completion is re-evaluated, which may now be
// satisfiable with a smaller expected set.
func (m *Manager) RemoveWorkstream(workstreamID string) {
	var callbacks []func()

	m.mu.Lock()
	for _, p := range m.points {
		if p.status.Terminal() {
			continue
		}
		touched := slices.Contains(p.expected, workstreamID) || slices.Contains(p.arrived, workstreamID)
		if !touched {
			continue
		}
		p.expected = removeString(p.expected, workstreamID)
		p.arrived = removeString(p.arrived, workstreamID)

		kept := p.waiters[:0]
		for _, w := range p.waiters {
			if w.workstreamID == workstreamID {
				w.ch <- waitOutcome{err: core.ErrWaitAborted}
				continue
			}
			kept = append(kept, w)
		}
		p.waiters = kept

		if len(p.expected) == 0 {
			// Nothing left to rendezvous with.
			p.cancelErr = core.ErrWaitAborted
			callbacks = append(callbacks, m.completeLocked(p, core.PartialSyncFailed))
			continue
		}
		if done := m.evaluateLocked(p); done != nil {
			callbacks = append(callbacks, done)
		}
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Info returns a snapshot of one point.
func (m *Manager) Info(pointID string) (*core.PartialSyncInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[pointID]
	if !ok {
		return nil, false
	}
	return p.info(), true
}

// CleanupCompleted drops terminal points whose completion is older than maxAge
// and returns how many were removed.
func (m *Manager) CleanupCompleted(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, p := range m.points {
		if p.status.Terminal() && p.result != nil && p.result.CompletedAt.Before(cutoff) {
			delete(m.points, id)
			removed++
		}
	}
	return removed
}

// Dispose cancels every WAITING point with core.ErrDisposed and stops all
// timers.
func (m *Manager) Dispose() {
	var callbacks []func()
	m.mu.Lock()
	for _, p := range m.points {
		if p.status.Terminal() {
			continue
		}
		p.cancelErr = core.ErrDisposed
		callbacks = append(callbacks, m.completeLocked(p, core.PartialSyncFailed))
	}
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// timeout is the timer callback forcing the terminal timeout state unless the
// point already completed on the ordinary path.
func (m *Manager) timeout(pointID string) {
	m.mu.Lock()
	p, ok := m.points[pointID]
	if !ok || p.status.Terminal() {
		m.mu.Unlock()
		return
	}
	status := core.PartialSyncTimedOut
	if p.cfg.ContinueOnTimeout {
		status = core.PartialSyncPartialComplete
	}
	done := m.completeLocked(p, status)
	m.mu.Unlock()
	done()
}

// evaluateLocked checks completion after an arrival or cleanup. It returns a
// non-nil callback (to run outside the lock) when the point completed. Caller
// holds m.mu.
func (m *Manager) evaluateLocked(p *syncPoint) func() {
	if p.fullAttendance() {
		return m.completeLocked(p, core.PartialSyncComplete)
	}
	if p.minimumMet() && p.requiredMet() {
		return m.completeLocked(p, core.PartialSyncPartialComplete)
	}
	return nil
}

// completeLocked freezes the result, resolves every waiter and stops the
// timer. The returned callback emits logging and the OnComplete hook and must
// run after m.mu is released. Caller holds m.mu.
func (m *Manager) completeLocked(p *syncPoint, status core.PartialSyncStatus) func() {
	p.status = status

	missing := make([]string, 0)
	for _, ws := range p.expected {
		if !slices.Contains(p.arrived, ws) {
			missing = append(missing, ws)
		}
	}

	p.result = &core.PartialSyncResult{
		PointID:       p.id,
		Status:        status,
		Participating: append([]string(nil), p.arrived...),
		Missing:       missing,
		MinimumMet:    p.minimumMet(),
		RequiredMet:   p.requiredMet(),
		CompletedAt:   time.Now().UTC(),
		Err:           p.cancelErr,
	}

	for _, w := range p.waiters {
		if !slices.Contains(p.released, w.workstreamID) {
			p.released = append(p.released, w.workstreamID)
		}
		w.ch <- waitOutcome{result: p.result}
	}
	p.waiters = nil

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	info := p.info()
	dur := p.result.CompletedAt.Sub(p.createdAt)
	return func() {
		m.LogInfo("sync point completed", "sync_point_id", info.ID, "status", string(status), "arrived", len(info.Arrived), "expected", len(info.Expected), "duration", dur)
		if m.onComplete != nil {
			m.onComplete(*info)
		}
	}
}

func (p *syncPoint) fullAttendance() bool {
	for _, ws := range p.expected {
		if !slices.Contains(p.arrived, ws) {
			return false
		}
	}
	return true
}

func (p *syncPoint) minimumMet() bool {
	min := p.cfg.Minimum
	if p.cfg.MinimumFunc != nil {
		min = p.cfg.MinimumFunc(len(p.expected))
	}
	if min <= 0 {
		return false
	}
	return len(p.arrived) >= min
}

func (p *syncPoint) requiredMet() bool {
	for _, req := range p.cfg.Required {
		if slices.Contains(p.expected, req) && !slices.Contains(p.arrived, req) {
			return false
		}
	}
	return true
}

func (p *syncPoint) info() *core.PartialSyncInfo {
	var result *core.PartialSyncResult
	if p.result != nil {
		r := *p.result
		result = &r
	}
	return &core.PartialSyncInfo{
		ID:        p.id,
		Expected:  append([]string(nil), p.expected...),
		Arrived:   append([]string(nil), p.arrived...),
		Released:  append([]string(nil), p.released...),
		Status:    p.status,
		CreatedAt: p.createdAt,
		Result:    result,
	}
}

func (m *Manager) dequeue(p *syncPoint, w *pointWaiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range p.waiters {
		if q == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
