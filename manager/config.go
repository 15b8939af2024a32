package manager

import (
	"time"

	"github.com/hupe1980/syncmesh/deadlock"
)

// Config defines tuning parameters for a SynchronizationManager.
//
// Additional concerns such as logging and metrics are configured via
// functional options rather than expanding this struct.
type Config struct {
	// DetectionInterval is the period of the background deadlock-detection
	// loop. Zero disables periodic detection; DetectDeadlocks can still be
	// called explicitly.
	DetectionInterval time.Duration `validate:"gte=0"`

	// CleanupInterval is the period of the background cleanup loop removing
	// resolved deadlocks, completed sync points and finished conflicts and
	// transactions. Zero disables periodic cleanup.
	CleanupInterval time.Duration `validate:"gte=0"`

	// AllocationTimeout bounds how long a resource request may stay pending
	// before timeout-based detection flags it.
	AllocationTimeout time.Duration `validate:"gt=0"`

	// MaxCompletedAge is how long resolved/completed records are retained
	// before the cleanup loop drops them.
	MaxCompletedAge time.Duration `validate:"gt=0"`

	// Algorithm selects the deadlock-detection method.
	Algorithm deadlock.Algorithm `validate:"required"`

	// Strategy selects the deadlock-recovery action.
	Strategy deadlock.Strategy `validate:"required"`

	// AutoResolve applies the strategy to every new deadlock immediately.
	AutoResolve bool
}

// DefaultConfig provides conservative defaults: wait-for-graph detection every
// five seconds with preemption recovery, half-minute allocation timeout and
// five-minute record retention.
var DefaultConfig = Config{
	DetectionInterval: 5 * time.Second,
	CleanupInterval:   time.Minute,
	AllocationTimeout: 30 * time.Second,
	MaxCompletedAge:   5 * time.Minute,
	Algorithm:         deadlock.AlgorithmWaitForGraph,
	Strategy:          deadlock.StrategyPreemption,
	AutoResolve:       true,
}
