package notify

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// Handler consumes published notifications.
type Handler func(n core.Notification)

type subscription struct {
	id      string
	types   []string
	handler Handler
}

func (s *subscription) matches(notifType string) bool {
	return slices.Contains(s.types, core.NotifyAll) || slices.Contains(s.types, notifType)
}

// Options configures a Notifier.
type Options struct {
	// HistorySize bounds the recent-notification ring. Defaults to 128.
	HistorySize int
	// Logger used for structured fan-out logging. Defaults to NoOp.
	Logger logging.Logger
}

// Notifier delivers typed notifications to subscribers. It is safe for
// concurrent use.
type Notifier struct {
	*core.LoggerAdapter

	historySize int

	// deliverMu serializes fan-out so subscribers observe notifications in
	// history order even under concurrent publishers.
	deliverMu sync.Mutex

	mu      sync.Mutex
	subs    []*subscription
	history []core.Notification
}

// New constructs a Notifier.
func New(optFns ...func(o *Options)) *Notifier {
	opts := Options{HistorySize: 128}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = 1
	}
	return &Notifier{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		historySize:   opts.HistorySize,
	}
}

// Subscribe registers a handler for the given types ("*" receives every
// type), replacing any prior subscription under the same id. Returns the
// subscription id for symmetry with Unsubscribe.
func (n *Notifier) Subscribe(id string, types []string, handler Handler) string {
	if id == "" {
		id = core.NewID()
	}
	if len(types) == 0 {
		types = []string{core.NotifyAll}
	}
	sub := &subscription{id: id, types: append([]string(nil), types...), handler: handler}

	n.mu.Lock()
	n.removeLocked(id)
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeLocked(id)
}

// Publish delivers the notification to every matching subscriber in
// subscription order and records it in the history ring. Concurrent publishes
// are serialized, so per-subscriber delivery order matches history order.
// Handlers may subscribe and unsubscribe but must not call Publish.
func (n *Notifier) Publish(notification core.Notification) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	n.history = append(n.history, notification)
	if len(n.history) > n.historySize {
		n.history = n.history[len(n.history)-n.historySize:]
	}
	var targets []*subscription
	for _, s := range n.subs {
		if s.matches(notification.Type) {
			targets = append(targets, s)
		}
	}
	n.mu.Unlock()

	for _, s := range targets {
		n.deliver(s, notification)
	}
}

// Recent returns up to limit notifications, newest last. limit <= 0 returns
// the full retained history.
func (n *Notifier) Recent(limit int) []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := n.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]core.Notification(nil), h...)
}

// Subscribers returns the active subscription ids.
func (n *Notifier) Subscribers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.subs))
	for _, s := range n.subs {
		out = append(out, s.id)
	}
	return out
}

// deliver invokes one handler with panic containment.
func (n *Notifier) deliver(s *subscription, notification core.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			n.LogError("notification handler panicked", "subscriber", s.id, "type", notification.Type, "panic", fmt.Sprintf("%v", rec))
		}
	}()
	s.handler(notification)
}

func (n *Notifier) removeLocked(id string) {
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}
