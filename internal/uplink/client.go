// Package uplink defines the remote-store client contract and the
// single-slot upload tracker.
//
// Sending is two-phase: Send returns a correlation id synchronously meaning
// "accepted for transmission", not "delivered". Delivery is observed later
// by polling IsConfirmed. The client's Service method must be called every
// loop iteration so background transmission can make progress; nothing in
// this package blocks the caller.
package uplink

import (
	"github.com/google/uuid"

	"github.com/taptrack/taptrack/internal/record"
)

// Client is the remote-store transport consumed by the controller.
type Client interface {
	// IsReady reports whether the client can accept a send right now.
	IsReady() bool

	// Service lets the client make background progress. Must be invoked
	// every loop iteration; must return promptly.
	Service()

	// Send submits a record for transmission. Returns a non-empty
	// correlation id when the record was accepted for transmission, or
	// empty when the send could not even start.
	Send(rec record.AttendanceRecord) string

	// IsConfirmed reports whether the given correlation id has been
	// confirmed delivered. A confirmation is consumed by the call that
	// observes it: polling the same id again returns false.
	IsConfirmed(correlationID string) bool

	// SendPendingRegistration reports an unregistered identifier to the
	// remote pending-registration channel. Fire-and-forget: not queued,
	// not retried, no confirmation.
	SendPendingRegistration(identifier, timestamp string)
}

// CorrelationIDGenerator mints correlation ids for send attempts.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type CorrelationIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 correlation ids, which
// keeps event-log entries sortable by send time.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
