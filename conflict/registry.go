package conflict

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// Handler resolves conflicts of the types it declares via CanHandle.
type Handler interface {
	// Name identifies the handler in resolution records.
	Name() string
	// CanHandle reports whether the handler applies to the conflict type.
	CanHandle(conflictType string) bool
	// HandleConflict resolves the conflict, returning the resolution result.
	// A nil result or an error marks the conflict unresolvable.
	HandleConflict(ctx context.Context, conflict *core.ConflictInfo) (any, error)
}

// HandlerFunc adapts plain functions into a Handler.
type HandlerFunc struct {
	HandlerName string
	Types       []string // empty means all types
	Fn          func(ctx context.Context, conflict *core.ConflictInfo) (any, error)
}

// Name returns the handler name.
func (h HandlerFunc) Name() string { return h.HandlerName }

// CanHandle reports whether the conflict type is covered.
func (h HandlerFunc) CanHandle(conflictType string) bool {
	if len(h.Types) == 0 {
		return true
	}
	for _, t := range h.Types {
		if t == conflictType {
			return true
		}
	}
	return false
}

// HandleConflict invokes the wrapped function.
func (h HandlerFunc) HandleConflict(ctx context.Context, conflict *core.ConflictInfo) (any, error) {
	return h.Fn(ctx, conflict)
}

// Options configures a Registry.
type Options struct {
	// OnDetected is invoked after a conflict is recorded.
	OnDetected func(conflict core.ConflictInfo)
	// OnResolved is invoked after a conflict reaches resolved or
	// unresolvable.
	OnResolved func(conflict core.ConflictInfo)
	// Logger used for structured conflict logging. Defaults to NoOp.
	Logger logging.Logger
}

// Registry records conflicts and dispatches resolution. It is safe for
// concurrent use; handlers run outside the registry lock.
type Registry struct {
	*core.LoggerAdapter

	onDetected func(conflict core.ConflictInfo)
	onResolved func(conflict core.ConflictInfo)

	mu        sync.Mutex
	conflicts map[string]*core.ConflictInfo
	handlers  []Handler
}

// NewRegistry constructs an empty conflict registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		onDetected:    opts.OnDetected,
		onResolved:    opts.OnResolved,
		conflicts:     make(map[string]*core.ConflictInfo),
	}
}

// RegisterHandler appends a resolution handler. Handlers are consulted in
// registration order; the first whose CanHandle matches wins.
func (r *Registry) RegisterHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// DetectConflict records a new conflict in the detected state and returns a
// snapshot.
func (r *Registry) DetectConflict(scope string, workstreams []string, reason, conflictType string, severity core.ConflictSeverity, data map[string]any) *core.ConflictInfo {
	c := &core.ConflictInfo{
		ID:           core.NewID(),
		Scope:        scope,
		Workstreams:  append([]string(nil), workstreams...),
		Reason:       reason,
		Type:         conflictType,
		Severity:     severity,
		Status:       core.ConflictDetected,
		ConflictData: data,
		DetectedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	r.conflicts[c.ID] = c
	r.mu.Unlock()

	r.LogWarn("conflict detected", "conflict_id", c.ID, "type", conflictType, "scope", scope, "severity", string(severity))
	if r.onDetected != nil {
		r.onDetected(*c.Clone())
	}
	return c.Clone()
}

// ResolveConflict dispatches the conflict to the first matching handler (or
// the default strategy) and returns the resolution result. An already-resolved
// conflict is a no-op returning the cached result; an unresolvable conflict
// stays unresolvable.
func (r *Registry) ResolveConflict(ctx context.Context, id string) (any, error) {
	r.mu.Lock()
	c, ok := r.conflicts[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("conflict %q: %w", id, core.ErrNotFound)
	}
	switch c.Status {
	case core.ConflictResolved:
		result := c.ResolutionResult
		r.mu.Unlock()
		return result, nil
	case core.ConflictUnresolvable:
		r.mu.Unlock()
		return nil, fmt.Errorf("conflict %q unresolvable: %w", id, core.ErrTerminal)
	case core.ConflictAnalyzing, core.ConflictResolving:
		r.mu.Unlock()
		return nil, fmt.Errorf("conflict %q resolution in progress", id)
	}

	handler := r.matchLocked(c.Type)
	c.Status = core.ConflictResolving
	c.ResolutionStrategy = handler.Name()
	snapshot := c.Clone()
	r.mu.Unlock()

	result, err := r.invoke(ctx, handler, snapshot)

	r.mu.Lock()
	now := time.Now().UTC()
	if err != nil || result == nil {
		c.Status = core.ConflictUnresolvable
		c.ResolvedAt = &now
	} else {
		c.Status = core.ConflictResolved
		c.ResolutionResult = result
		c.ResolvedAt = &now
		c.ResolvedBy = handler.Name()
	}
	final := c.Clone()
	r.mu.Unlock()

	if err != nil {
		// Handler failure is contained: logged, recorded, never propagated as
		// a panic to unrelated conflicts.
		r.LogError("conflict resolution failed", "conflict_id", id, "handler", handler.Name(), "error", err)
	} else if result == nil {
		r.LogWarn("conflict declined by handler", "conflict_id", id, "handler", handler.Name())
	} else {
		r.LogInfo("conflict resolved", "conflict_id", id, "handler", handler.Name())
	}
	if r.onResolved != nil {
		r.onResolved(*final)
	}

	if final.Status == core.ConflictUnresolvable {
		return nil, fmt.Errorf("conflict %q unresolvable", id)
	}
	return result, nil
}

// Conflict returns a snapshot of one record.
func (r *Registry) Conflict(id string) (*core.ConflictInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conflicts[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Conflicts returns snapshots of every record, newest first.
func (r *Registry) Conflicts() []*core.ConflictInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*core.ConflictInfo, 0, len(r.conflicts))
	for _, c := range r.conflicts {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out
}

// CleanupResolved drops resolved and unresolvable records older than maxAge
// and returns how many were removed.
func (r *Registry) CleanupResolved(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, c := range r.conflicts {
		terminal := c.Status == core.ConflictResolved || c.Status == core.ConflictUnresolvable
		if terminal && c.ResolvedAt != nil && c.ResolvedAt.Before(cutoff) {
			delete(r.conflicts, id)
			removed++
		}
	}
	return removed
}

// matchLocked returns the first matching handler or the default strategy.
// Caller holds r.mu.
func (r *Registry) matchLocked(conflictType string) Handler {
	for _, h := range r.handlers {
		if h.CanHandle(conflictType) {
			return h
		}
	}
	return defaultStrategy{}
}

// invoke runs the handler with panic containment.
func (r *Registry) invoke(ctx context.Context, h Handler, c *core.ConflictInfo) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("handler %q panicked: %v", h.Name(), rec)
		}
	}()
	return h.HandleConflict(ctx, c)
}

// defaultStrategy resolves conflicts no registered handler claims by recording
// the conflict data and deferring the decision to the highest-severity rule:
// the first listed workstream wins the scope.
type defaultStrategy struct{}

func (defaultStrategy) Name() string { return "default-first-wins" }

func (defaultStrategy) CanHandle(string) bool { return true }

func (defaultStrategy) HandleConflict(_ context.Context, c *core.ConflictInfo) (any, error) {
	winner := ""
	if len(c.Workstreams) > 0 {
		winner = c.Workstreams[0]
	}
	return map[string]any{
		"strategy": "default-first-wins",
		"winner":   winner,
		"scope":    c.Scope,
	}, nil
}
