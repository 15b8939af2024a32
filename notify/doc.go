// Package notify fans out typed events to subscribers.
//
// Subscribers register for specific notification types or the "*" wildcard.
// Publication is synchronous and serialized per notifier, preserving
// publication order at every subscriber; handler panics are recovered and
// logged so one subscriber cannot poison the fan-out. A bounded ring of
// recent notifications is retained for inspection.
package notify
