// Package exchange implements push-based data delivery between workstreams.
//
// A Channel pairs a delivery mode with Send and Subscribe:
//
//   - broadcast: every subscriber receives every message
//   - direct: only the declared target workstreams receive the message
//   - queue: FIFO, one consumer per message, round-robin across consumers
//   - topic: subscribers receive only messages matching their topics
//   - shared: last-value-wins per key; new subscribers receive current values
//
// Ordering is preserved per sender at each subscriber; cross-sender ordering
// is unspecified. Handlers run on the sender's goroutine, so long-running
// consumers should hand off to their own worker.
package exchange
