// Package partial implements multi-party rendezvous points that can complete
// with fewer than all expected participants.
//
// A sync point is created WAITING over an expected workstream set. Completion
// is re-evaluated after every arrival and every external cleanup: full
// attendance yields COMPLETE; meeting the minimum-participant threshold with
// every required workstream present yields PARTIAL_COMPLETE even while
// non-required participants are still missing. A timeout while WAITING yields
// PARTIAL_COMPLETE when continuation is permitted, else TIMED_OUT; explicit
// cancellation yields FAILED. Once terminal, a point's status never changes
// and every waiter (including late callers) receives the same frozen result.
package partial
