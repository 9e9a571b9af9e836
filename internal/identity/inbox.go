package identity

import "sync"

// Change is one push-style identity update from the remote store.
type Change struct {
	Identifier string
	Name       string
	Added      bool // false means the identifier was unregistered
}

// DefaultInboxCapacity bounds pending identity changes. Updates beyond the
// bound are dropped oldest-first; the remote store re-sends the full user
// set on stream reconnect, so a dropped delta heals on the next sync.
const DefaultInboxCapacity = 64

// Inbox buffers identity changes between the remote stream's call stack and
// the control loop. Push may be called from any goroutine; Drain must be
// called only by the control loop.
type Inbox struct {
	mu      sync.Mutex
	pending []Change
	cap     int
}

// NewInbox creates an inbox with the given capacity bound; zero or negative
// means DefaultInboxCapacity.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{
		pending: make([]Change, 0, capacity),
		cap:     capacity,
	}
}

// Push appends a change, evicting the oldest pending change at capacity.
// Returns false when an eviction happened.
func (in *Inbox) Push(ch Change) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	evicted := false
	if len(in.pending) >= in.cap {
		copy(in.pending, in.pending[1:])
		in.pending = in.pending[:len(in.pending)-1]
		evicted = true
	}
	in.pending = append(in.pending, ch)
	return !evicted
}

// Drain removes and returns all pending changes in arrival order.
func (in *Inbox) Drain() []Change {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pending) == 0 {
		return nil
	}
	out := make([]Change, len(in.pending))
	copy(out, in.pending)
	in.pending = in.pending[:0]
	return out
}

// Len returns the number of pending changes.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Apply drains the inbox into the cache. Returns the number of changes
// applied. Called once per loop iteration by the controller.
func (in *Inbox) Apply(c *Cache) int {
	changes := in.Drain()
	for _, ch := range changes {
		if ch.Added {
			c.Register(ch.Identifier, ch.Name)
		} else {
			c.Unregister(ch.Identifier)
		}
	}
	return len(changes)
}
