package uplink

// Origin records which path started the tracked upload. The distinction
// matters on timeout: a queue-drain record is still in the queue and must
// be failed-to-tail there, while a live record was never queued and is not
// re-enqueued.
type Origin int

const (
	// OriginLive - the upload came straight from a tap.
	OriginLive Origin = iota + 1
	// OriginQueue - the upload came from the queue drain.
	OriginQueue
)

// DefaultTimeoutMillis is how long a tracked upload may await confirmation
// before being abandoned.
const DefaultTimeoutMillis = 10_000

// Tracker holds at most one in-flight upload system-wide. Uploads are
// deliberately serialized so confirmation bookkeeping stays a single
// compare; a second attendance event arriving while one is in flight is
// queued, never started concurrently.
//
// Touched only by the control loop; needs no locking.
type Tracker struct {
	active        bool
	correlationID string
	identifier    string
	origin        Origin
	startMillis   int64
	timeoutMillis int64
}

// NewTracker creates an idle tracker with the given timeout; zero or
// negative means DefaultTimeoutMillis.
func NewTracker(timeoutMillis int64) *Tracker {
	if timeoutMillis <= 0 {
		timeoutMillis = DefaultTimeoutMillis
	}
	return &Tracker{timeoutMillis: timeoutMillis}
}

// Begin starts tracking an upload. Returns false when one is already in
// flight; the caller must queue instead.
func (t *Tracker) Begin(correlationID, identifier string, origin Origin, nowMillis int64) bool {
	if t.active {
		return false
	}
	t.active = true
	t.correlationID = correlationID
	t.identifier = identifier
	t.origin = origin
	t.startMillis = nowMillis
	return true
}

// Active reports whether an upload is in flight.
func (t *Tracker) Active() bool { return t.active }

// CorrelationID returns the tracked correlation id, empty when idle.
func (t *Tracker) CorrelationID() string {
	if !t.active {
		return ""
	}
	return t.correlationID
}

// Identifier returns the identifier of the tracked upload, empty when idle.
func (t *Tracker) Identifier() string {
	if !t.active {
		return ""
	}
	return t.identifier
}

// TrackedOrigin returns the origin of the tracked upload.
func (t *Tracker) TrackedOrigin() Origin { return t.origin }

// TimedOut reports whether the tracked upload has exceeded its deadline.
// Always false when idle.
func (t *Tracker) TimedOut(nowMillis int64) bool {
	return t.active && nowMillis-t.startMillis > t.timeoutMillis
}

// Clear abandons the tracked upload and returns the tracker to idle.
func (t *Tracker) Clear() {
	*t = Tracker{timeoutMillis: t.timeoutMillis}
}

// InFlightFor reports whether an upload is in flight for the given
// identifier. Used by the tap guard to suppress a second physical tap
// during network latency.
func (t *Tracker) InFlightFor(identifier string) bool {
	return t.active && t.identifier == identifier
}
