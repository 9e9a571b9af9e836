package controller

import (
	"sync"

	"github.com/taptrack/taptrack/internal/record"
)

// CardReader is the physical reader contract. TryReadIdentifier must not
// block: it either has an identifier right now or it does not.
type CardReader interface {
	// TryReadIdentifier returns the identifier of the card currently on
	// the reader (uppercase hex), or ok=false when the read failed.
	TryReadIdentifier() (id string, ok bool)
}

// Clock is the timekeeping contract. Now may return an implausible reading
// (dead RTC battery); callers must validate it. NowMillis is a monotonic
// millisecond counter used for all interval arithmetic, never for
// timestamps.
type Clock interface {
	Now() record.DateTime
	NowMillis() int64
}

// DetectLine is the card-present flag set by the reader's edge-triggered
// detect callback and consumed by the control loop.
//
// The callback side does nothing but stamp the flag; all logic runs on the
// loop side. The mutex is the critical section that prevents a torn read
// between the two. Single writer (the callback), single reader (the loop).
type DetectLine struct {
	mu       sync.Mutex
	raised   bool
	raisedAt int64
}

// Raise marks the line asserted. Called from the detect callback; safe
// from any goroutine. Re-raising while already raised keeps the original
// assert time so the stabilization window measures continuous assertion.
func (d *DetectLine) Raise(nowMillis int64) {
	d.mu.Lock()
	if !d.raised {
		d.raised = true
		d.raisedAt = nowMillis
	}
	d.mu.Unlock()
}

// Stable reports whether the line has been continuously asserted for at
// least windowMillis. Filters electrical bounce without blocking the loop.
func (d *DetectLine) Stable(nowMillis, windowMillis int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raised && nowMillis-d.raisedAt >= windowMillis
}

// Consume clears the flag. Loop side only.
func (d *DetectLine) Consume() {
	d.mu.Lock()
	d.raised = false
	d.mu.Unlock()
}
