// Package primitive implements the classic blocking coordination constructs
// used by workstreams: Barrier, Semaphore, Mutex and CountdownLatch.
//
// Blocked callers never occupy an OS thread beyond their own goroutine: every
// blocking method parks on a per-waiter channel and honors context
// cancellation. Each primitive serializes its own state with a single mutex
// and exposes RemoveWaiter so the synchronization manager can force-release a
// cleaned-up or deadlock-aborted workstream; the abandoned wait resolves with
// core.ErrWaitAborted so the caller can retry or fail gracefully.
//
// Primitives never fail under ordinary contention; errors are reserved for
// structural misuse (negative permit counts, unlocking a mutex the caller does
// not hold).
package primitive
