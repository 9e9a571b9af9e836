// Package testutil provides deterministic collaborators for controller and
// component tests.
package testutil

import (
	"sync"

	"github.com/taptrack/taptrack/internal/record"
)

// Clock is a deterministic time source for tests: a settable wall-clock
// reading plus a manually advanced monotonic millisecond counter.
//
// Thread-safe via internal mutex so detect callbacks fired from test
// goroutines see consistent readings.
type Clock struct {
	mu     sync.Mutex
	wall   record.DateTime
	millis int64
}

// NewClock creates a clock at monotonic zero with a plausible default wall
// time (2025-06-15 08:30:00, before the default on-time hour).
func NewClock() *Clock {
	return &Clock{
		wall: record.DateTime{Year: 2025, Month: 6, Day: 15, Hour: 8, Minute: 30},
	}
}

// Now returns the current wall reading.
func (c *Clock) Now() record.DateTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall
}

// NowMillis returns the monotonic counter.
func (c *Clock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

// Advance moves the monotonic counter forward by ms.
func (c *Clock) Advance(ms int64) {
	c.mu.Lock()
	c.millis += ms
	c.mu.Unlock()
}

// SetWall replaces the wall reading.
func (c *Clock) SetWall(d record.DateTime) {
	c.mu.Lock()
	c.wall = d
	c.mu.Unlock()
}

// SetHour adjusts only the hour of the wall reading.
func (c *Clock) SetHour(hour int) {
	c.mu.Lock()
	c.wall.Hour = hour
	c.mu.Unlock()
}
