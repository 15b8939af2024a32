package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.DeadlockDetected()
	c.DeadlockDetected()
	c.DeadlockResolved("preemption")
	c.SyncPointFinished("COMPLETE")
	c.ConflictFinished("resolved")
	c.TransactionFinished("committed")
	c.BarrierReleased()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.deadlocksDetected))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.deadlocksResolved.WithLabelValues("preemption")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.syncPoints.WithLabelValues("COMPLETE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.conflicts.WithLabelValues("resolved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.transactions.WithLabelValues("committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.barrierReleases))
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.WaiterParked()
	c.WaiterParked()
	c.WaiterReleased()
	assert.Equal(t, float64(1), testutil.ToFloat64(c.waiters))

	c.WorkstreamRegistered()
	c.WorkstreamRemoved()
	assert.Equal(t, float64(0), testutil.ToFloat64(c.workstreams))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.DeadlockDetected()
		c.DeadlockResolved("preemption")
		c.SyncPointFinished("COMPLETE")
		c.ConflictFinished("resolved")
		c.TransactionFinished("committed")
		c.BarrierReleased()
		c.WaiterParked()
		c.WaiterReleased()
		c.WorkstreamRegistered()
		c.WorkstreamRemoved()
	})
}
