package exchange

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/logging"
)

// Mode selects the delivery semantics of a channel.
type Mode string

const (
	// ModeBroadcast delivers every message to every subscriber.
	ModeBroadcast Mode = "broadcast"
	// ModeDirect delivers only to the targets named on each send.
	ModeDirect Mode = "direct"
	// ModeQueue delivers each message to exactly one consumer, FIFO.
	ModeQueue Mode = "queue"
	// ModeTopic delivers to subscribers whose topic filter matches.
	ModeTopic Mode = "topic"
	// ModeShared keeps the last value per key and pushes updates.
	ModeShared Mode = "shared"
)

// Message is the unit of exchange. After sending it should be treated as
// immutable.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Source    string    `json:"source"`
	Data      any       `json:"data"`
	Targets   []string  `json:"targets,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler consumes messages delivered to a subscriber.
type Handler func(msg Message)

type subscriber struct {
	id      string
	topics  []string
	handler Handler
}

func (s *subscriber) matchesTopic(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

// ChannelOptions configures a Channel.
type ChannelOptions struct {
	Logger logging.Logger
}

// Channel is one named data-exchange conduit. It is safe for concurrent use;
// handlers are invoked synchronously on the sender's goroutine after internal
// state is updated, which preserves per-sender ordering.
type Channel struct {
	*core.LoggerAdapter

	id   string
	mode Mode

	mu      sync.Mutex
	subs    []*subscriber
	pending []Message          // queue mode: buffered while no consumer exists
	rr      int                // queue mode: round-robin cursor
	shared  map[string]Message // shared mode: last value per key
}

// NewChannel creates a channel with the given id and delivery mode.
func NewChannel(id string, mode Mode, optFns ...func(o *ChannelOptions)) *Channel {
	opts := ChannelOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Channel{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		id:            id,
		mode:          mode,
		shared:        make(map[string]Message),
	}
}

// ID returns the channel id.
func (c *Channel) ID() string { return c.id }

// Mode returns the channel's delivery mode.
func (c *Channel) Mode() Mode { return c.mode }

// SendOptions carries per-message delivery hints.
type SendOptions struct {
	// Targets names the recipients for direct mode.
	Targets []string
	// Topic tags the message for topic mode filtering.
	Topic string
	// Key selects the slot for shared mode last-value storage.
	Key string
}

// Send publishes data from source according to the channel mode. For direct
// mode at least one target is required; for shared mode a key is required.
func (c *Channel) Send(source string, data any, optFns ...func(o *SendOptions)) error {
	opts := SendOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	msg := Message{
		ID:        core.NewID(),
		ChannelID: c.id,
		Source:    source,
		Data:      data,
		Targets:   opts.Targets,
		Topic:     opts.Topic,
		Key:       opts.Key,
		Timestamp: time.Now().UTC(),
	}

	switch c.mode {
	case ModeDirect:
		if len(msg.Targets) == 0 {
			return fmt.Errorf("direct channel %q: send without targets", c.id)
		}
	case ModeShared:
		if msg.Key == "" {
			return fmt.Errorf("shared channel %q: send without key", c.id)
		}
	}

	deliveries := c.route(msg)
	for _, d := range deliveries {
		d.handler(msg)
	}
	return nil
}

// route updates channel state under lock and returns the subscribers the
// message must reach, in subscription order.
func (c *Channel) route(msg Message) []*subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case ModeBroadcast:
		return append([]*subscriber(nil), c.subs...)

	case ModeDirect:
		var out []*subscriber
		for _, s := range c.subs {
			if slices.Contains(msg.Targets, s.id) {
				out = append(out, s)
			}
		}
		return out

	case ModeTopic:
		var out []*subscriber
		for _, s := range c.subs {
			if s.matchesTopic(msg.Topic) {
				out = append(out, s)
			}
		}
		return out

	case ModeQueue:
		if len(c.subs) == 0 {
			c.pending = append(c.pending, msg)
			return nil
		}
		consumer := c.subs[c.rr%len(c.subs)]
		c.rr++
		return []*subscriber{consumer}

	case ModeShared:
		c.shared[msg.Key] = msg
		return append([]*subscriber(nil), c.subs...)
	}
	return nil
}

// SubscribeOptions carries per-subscriber filtering.
type SubscribeOptions struct {
	// Topics restricts topic-mode delivery; empty means all topics.
	Topics []string
}

// Subscribe registers a push callback for workstreamID, replacing any prior
// subscription under the same id. On queue channels the new consumer drains
// buffered messages; on shared channels it receives the current value of each
// key.
func (c *Channel) Subscribe(workstreamID string, handler Handler, optFns ...func(o *SubscribeOptions)) {
	opts := SubscribeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	sub := &subscriber{id: workstreamID, topics: opts.Topics, handler: handler}

	c.mu.Lock()
	c.removeLocked(workstreamID)
	c.subs = append(c.subs, sub)

	var replay []Message
	switch c.mode {
	case ModeQueue:
		replay = c.pending
		c.pending = nil
	case ModeShared:
		for _, msg := range c.shared {
			replay = append(replay, msg)
		}
		slices.SortFunc(replay, func(a, b Message) int { return a.Timestamp.Compare(b.Timestamp) })
	}
	c.mu.Unlock()

	for _, msg := range replay {
		handler(msg)
	}
}

// Unsubscribe removes the workstream's callback. Already-dequeued queue
// messages are not redelivered.
func (c *Channel) Unsubscribe(workstreamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(workstreamID)
}

// Subscribers returns the subscribed workstream ids in subscription order.
func (c *Channel) Subscribers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s.id)
	}
	return out
}

// SharedValue returns the current last-written value for key on a shared
// channel.
func (c *Channel) SharedValue(key string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.shared[key]
	return msg, ok
}

// Buffered returns the number of queue-mode messages awaiting a consumer.
func (c *Channel) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) removeLocked(workstreamID string) {
	for i, s := range c.subs {
		if s.id == workstreamID {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}
