package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects delivered payloads for one subscriber. The tests drive
// channels from a single goroutine, so no locking is needed.
type recorder struct {
	got []any
}

func (r *recorder) handler(msg Message) { r.got = append(r.got, msg.Data) }

func TestChannel_Broadcast(t *testing.T) {
	c := NewChannel("ch", ModeBroadcast)
	var a, b recorder
	c.Subscribe("w1", a.handler)
	c.Subscribe("w2", b.handler)

	require.NoError(t, c.Send("w3", "hello"))

	assert.Equal(t, []any{"hello"}, a.got)
	assert.Equal(t, []any{"hello"}, b.got)
}

func TestChannel_BroadcastIncludesSender(t *testing.T) {
	c := NewChannel("ch", ModeBroadcast)
	var a recorder
	c.Subscribe("w1", a.handler)

	require.NoError(t, c.Send("w1", 42))
	assert.Equal(t, []any{42}, a.got)
}

func TestChannel_Direct(t *testing.T) {
	c := NewChannel("ch", ModeDirect)
	var a, b recorder
	c.Subscribe("w1", a.handler)
	c.Subscribe("w2", b.handler)

	require.NoError(t, c.Send("w3", "ping", func(o *SendOptions) {
		o.Targets = []string{"w2"}
	}))

	assert.Empty(t, a.got)
	assert.Equal(t, []any{"ping"}, b.got)
}

func TestChannel_DirectRequiresTargets(t *testing.T) {
	c := NewChannel("ch", ModeDirect)
	assert.Error(t, c.Send("w1", "ping"))
}

func TestChannel_QueueRoundRobin(t *testing.T) {
	c := NewChannel("ch", ModeQueue)
	var a, b recorder
	c.Subscribe("w1", a.handler)
	c.Subscribe("w2", b.handler)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Send("producer", i))
	}

	assert.Equal(t, []any{0, 2}, a.got)
	assert.Equal(t, []any{1, 3}, b.got)
}

func TestChannel_QueueBuffersWithoutConsumer(t *testing.T) {
	c := NewChannel("ch", ModeQueue)

	require.NoError(t, c.Send("producer", "first"))
	require.NoError(t, c.Send("producer", "second"))
	assert.Equal(t, 2, c.Buffered())

	var a recorder
	c.Subscribe("w1", a.handler)

	assert.Equal(t, []any{"first", "second"}, a.got)
	assert.Equal(t, 0, c.Buffered())
}

func TestChannel_TopicFiltering(t *testing.T) {
	c := NewChannel("ch", ModeTopic)
	var alerts, all recorder
	c.Subscribe("w1", alerts.handler, func(o *SubscribeOptions) {
		o.Topics = []string{"alerts"}
	})
	c.Subscribe("w2", all.handler)

	require.NoError(t, c.Send("p", "a1", func(o *SendOptions) { o.Topic = "alerts" }))
	require.NoError(t, c.Send("p", "s1", func(o *SendOptions) { o.Topic = "status" }))

	assert.Equal(t, []any{"a1"}, alerts.got)
	assert.Equal(t, []any{"a1", "s1"}, all.got)
}

func TestChannel_SharedLastValue(t *testing.T) {
	c := NewChannel("ch", ModeShared)

	require.NoError(t, c.Send("w1", "v1", func(o *SendOptions) { o.Key = "config" }))
	require.NoError(t, c.Send("w1", "v2", func(o *SendOptions) { o.Key = "config" }))

	msg, ok := c.SharedValue("config")
	require.True(t, ok)
	assert.Equal(t, "v2", msg.Data)

	// A late subscriber receives the current value per key.
	var a recorder
	c.Subscribe("w2", a.handler)
	assert.Equal(t, []any{"v2"}, a.got)
}

func TestChannel_SharedRequiresKey(t *testing.T) {
	c := NewChannel("ch", ModeShared)
	assert.Error(t, c.Send("w1", "v1"))
}

func TestChannel_SubscribeReplacesPrior(t *testing.T) {
	c := NewChannel("ch", ModeBroadcast)
	var old, replacement recorder
	c.Subscribe("w1", old.handler)
	c.Subscribe("w1", replacement.handler)

	require.NoError(t, c.Send("w2", "x"))

	assert.Empty(t, old.got)
	assert.Equal(t, []any{"x"}, replacement.got)
	assert.Equal(t, []string{"w1"}, c.Subscribers())
}

func TestChannel_Unsubscribe(t *testing.T) {
	c := NewChannel("ch", ModeBroadcast)
	var a recorder
	c.Subscribe("w1", a.handler)
	c.Unsubscribe("w1")

	require.NoError(t, c.Send("w2", "x"))
	assert.Empty(t, a.got)
	assert.Empty(t, c.Subscribers())
}
