// Package deadlock detects and recovers from deadlocks over the shared
// resource-allocation graph.
//
// The detector supports four detection algorithms selected at construction:
// wait-for-graph cycle detection (DFS with a recursion stack), a
// resource-allocation-graph variant that currently delegates to wait-for
// detection, a Banker's-algorithm slot that reports nothing yet (an open
// extension point), and timeout-based detection flagging stale request edges.
//
// Each detected deadlock yields a DeadlockInfo record. With AutoResolve set,
// the configured prevention strategy picks a victim workstream and either
// fully aborts it (releasing held resources, cancelling pending requests and
// stripping its graph edges) or preempts only its held resources. The OnVictim
// hook lets the owning manager force-release the victim's parked waits and
// notify subscribers.
package deadlock
