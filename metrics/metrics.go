package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus instruments for one coordination domain. A
// nil Collector discards every observation.
type Collector struct {
	deadlocksDetected prometheus.Counter
	deadlocksResolved *prometheus.CounterVec
	syncPoints        *prometheus.CounterVec
	conflicts         *prometheus.CounterVec
	transactions      *prometheus.CounterVec
	barrierReleases   prometheus.Counter
	waiters           prometheus.Gauge
	workstreams       prometheus.Gauge
}

// NewCollector builds a Collector and registers its instruments with reg.
// Passing prometheus.DefaultRegisterer wires into the process-wide registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deadlocksDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncmesh",
			Name:      "deadlocks_detected_total",
			Help:      "Deadlocks detected across all algorithms.",
		}),
		deadlocksResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncmesh",
			Name:      "deadlocks_resolved_total",
			Help:      "Deadlocks resolved, labeled by prevention strategy.",
		}, []string{"strategy"}),
		syncPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncmesh",
			Name:      "sync_points_total",
			Help:      "Partial sync points reaching a terminal state, by status.",
		}, []string{"status"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncmesh",
			Name:      "conflicts_total",
			Help:      "Conflicts recorded and finished, by status.",
		}, []string{"status"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncmesh",
			Name:      "transactions_total",
			Help:      "Transactions finished, by status.",
		}, []string{"status"}),
		barrierReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncmesh",
			Name:      "barrier_releases_total",
			Help:      "Barrier generations released.",
		}),
		waiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncmesh",
			Name:      "sync_point_waiters",
			Help:      "Callers currently parked at a partial sync point.",
		}),
		workstreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncmesh",
			Name:      "registered_workstreams",
			Help:      "Workstreams registered in the allocation graph.",
		}),
	}
	reg.MustRegister(
		c.deadlocksDetected, c.deadlocksResolved, c.syncPoints,
		c.conflicts, c.transactions, c.barrierReleases,
		c.waiters, c.workstreams,
	)
	return c
}

// DeadlockDetected counts one detected deadlock.
func (c *Collector) DeadlockDetected() {
	if c == nil {
		return
	}
	c.deadlocksDetected.Inc()
}

// DeadlockResolved counts one resolved deadlock under the given strategy.
func (c *Collector) DeadlockResolved(strategy string) {
	if c == nil {
		return
	}
	c.deadlocksResolved.WithLabelValues(strategy).Inc()
}

// SyncPointFinished counts one sync point reaching the given terminal status.
func (c *Collector) SyncPointFinished(status string) {
	if c == nil {
		return
	}
	c.syncPoints.WithLabelValues(status).Inc()
}

// ConflictFinished counts one conflict reaching the given status.
func (c *Collector) ConflictFinished(status string) {
	if c == nil {
		return
	}
	c.conflicts.WithLabelValues(status).Inc()
}

// TransactionFinished counts one transaction reaching the given status.
func (c *Collector) TransactionFinished(status string) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(status).Inc()
}

// BarrierReleased counts one barrier generation release.
func (c *Collector) BarrierReleased() {
	if c == nil {
		return
	}
	c.barrierReleases.Inc()
}

// WaiterParked tracks one caller parking at a partial sync point.
func (c *Collector) WaiterParked() {
	if c == nil {
		return
	}
	c.waiters.Inc()
}

// WaiterReleased tracks one caller leaving a partial sync point.
func (c *Collector) WaiterReleased() {
	if c == nil {
		return
	}
	c.waiters.Dec()
}

// WorkstreamRegistered tracks one workstream joining the graph.
func (c *Collector) WorkstreamRegistered() {
	if c == nil {
		return
	}
	c.workstreams.Inc()
}

// WorkstreamRemoved tracks one workstream leaving the graph.
func (c *Collector) WorkstreamRemoved() {
	if c == nil {
		return
	}
	c.workstreams.Dec()
}
