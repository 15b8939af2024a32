package core

import "errors"

// Sentinel errors shared across component packages. Callers should match with
// errors.Is since components wrap these with contextual detail.
var (
	// ErrNotFound indicates an operation referenced an unregistered
	// primitive, resource, workstream, sync point or transaction id.
	ErrNotFound = errors.New("syncmesh: not found")

	// ErrWaitAborted indicates a parked wait was force-released, either by
	// workstream cleanup or because a deadlock recovery strategy chose the
	// waiter as its victim. Callers may retry or fail gracefully.
	ErrWaitAborted = errors.New("syncmesh: wait aborted")

	// ErrBarrierReset indicates a barrier generation was force-cleared while
	// the caller was still waiting in it.
	ErrBarrierReset = errors.New("syncmesh: barrier reset")

	// ErrInvalidPermits indicates a non-positive permit count was passed to a
	// semaphore acquire or release.
	ErrInvalidPermits = errors.New("syncmesh: invalid permit count")

	// ErrNotHolder indicates an unlock attempt by a workstream that does not
	// hold the mutex.
	ErrNotHolder = errors.New("syncmesh: not lock holder")

	// ErrDisposed indicates the owning component has been disposed and no
	// longer accepts operations.
	ErrDisposed = errors.New("syncmesh: disposed")

	// ErrTerminal indicates a state-machine transition was attempted on an
	// entity already in a terminal state.
	ErrTerminal = errors.New("syncmesh: already terminal")
)
