package syncmesh

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/syncmesh/core"
	"github.com/hupe1980/syncmesh/exchange"
	"github.com/hupe1980/syncmesh/manager"
	"github.com/hupe1980/syncmesh/partial"
)

func newTestMesh(t *testing.T, optFns ...func(o *Options)) *SyncMesh {
	t.Helper()
	cfg := manager.DefaultConfig
	cfg.DetectionInterval = 0
	cfg.CleanupInterval = 0
	cfg.AutoResolve = false

	mesh, err := New(append([]func(o *Options){func(o *Options) {
		o.Config = cfg
	}}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(mesh.Dispose)
	return mesh
}

func TestNew_Defaults(t *testing.T) {
	mesh := newTestMesh(t)
	require.NotNil(t, mesh.Manager())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(func(o *Options) {
		o.Config = manager.Config{}
	})
	assert.Error(t, err)
}

func TestSyncMesh_DeadlockRoundTrip(t *testing.T) {
	mesh := newTestMesh(t, func(o *Options) {
		o.MetricsRegisterer = prometheus.NewRegistry()
	})

	mesh.RegisterWorkstream("w1", 1)
	mesh.RegisterWorkstream("w2", 2)
	mesh.RegisterResource("r1")
	mesh.RegisterResource("r2")
	require.NoError(t, mesh.AllocateResource("r1", "w1"))
	require.NoError(t, mesh.AllocateResource("r2", "w2"))
	require.NoError(t, mesh.RequestResource("r2", "w1"))
	require.NoError(t, mesh.RequestResource("r1", "w2"))

	found := mesh.DetectDeadlocks()
	require.Len(t, found, 1)
	require.NoError(t, mesh.ResolveDeadlock(found[0].ID))
	assert.Empty(t, mesh.DetectDeadlocks())
}

func TestSyncMesh_PrimitivesAndChannels(t *testing.T) {
	mesh := newTestMesh(t)

	b := mesh.CreateBarrier("phase", 1)
	require.NoError(t, b.Wait(context.Background(), "w1"))

	s := mesh.CreateSemaphore("pool", 2)
	require.NoError(t, s.Acquire(context.Background(), "w1", 1))
	require.NoError(t, s.Release("w1", 1))

	mx := mesh.CreateMutex("lock")
	require.NoError(t, mx.Lock(context.Background(), "w1"))
	require.NoError(t, mx.Unlock("w1"))

	l := mesh.CreateCountdownLatch("latch", 1)
	l.CountDown("w1")
	require.NoError(t, l.Await(context.Background(), "w2"))

	ch, err := mesh.CreateDataExchangeChannel("pipe", exchange.ModeBroadcast)
	require.NoError(t, err)

	var got []any
	ch.Subscribe("w2", func(msg exchange.Message) { got = append(got, msg.Data) })
	require.NoError(t, ch.Send("w1", "payload"))
	assert.Equal(t, []any{"payload"}, got)

	same, err := mesh.GetDataExchangeChannel("pipe")
	require.NoError(t, err)
	assert.Same(t, ch, same)
}

func TestSyncMesh_PartialSync(t *testing.T) {
	mesh := newTestMesh(t)

	pointID, err := mesh.CreatePartialSyncPoint([]string{"w1", "w2"}, partial.Config{
		Minimum: 1,
	})
	require.NoError(t, err)

	result, err := mesh.WaitAtPartialSyncPoint(context.Background(), pointID, "w1")
	require.NoError(t, err)
	assert.Equal(t, core.PartialSyncPartialComplete, result.Status)
}

func TestSyncMesh_TransactionsAndConflicts(t *testing.T) {
	mesh := newTestMesh(t)

	txID := mesh.BeginTransaction([]string{"w1"})
	ran := false
	require.NoError(t, mesh.AddTransactionOperation(txID, "noop", "t", nil,
		func(context.Context) error {
			ran = true
			return nil
		}, nil))
	require.NoError(t, mesh.CommitTransaction(context.Background(), txID))
	assert.True(t, ran)

	c := mesh.DetectConflict("r1", []string{"w1", "w2"}, "clash", "write-write", core.SeverityLow, nil)
	result, err := mesh.ResolveConflict(context.Background(), c.ID)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestSyncMesh_NotificationsAndCleanup(t *testing.T) {
	mesh := newTestMesh(t)

	received := make(chan core.Notification, 4)
	mesh.SubscribeToNotifications("observer", []string{core.NotifyWorkstreamCleanup}, func(n core.Notification) {
		received <- n
	})

	mesh.RegisterWorkstream("w1", 1)
	mesh.CleanupWorkstream("w1")

	select {
	case n := <-received:
		assert.Equal(t, core.NotifyWorkstreamCleanup, n.Type)
	case <-time.After(time.Second):
		t.Fatal("cleanup notification not delivered")
	}
}
