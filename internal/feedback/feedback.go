// Package feedback maps processing outcomes to the external indicator
// (LED/buzzer) subsystem.
//
// Dispatch is not a state machine: every outcome maps to exactly one
// indicator call, calls are overwrite-safe, and issuing a new indication
// cancels any undelivered one. Indicate never blocks the control loop; the
// latest undelivered outcome is held in a one-slot latch and handed to the
// sink on the next Deliver call.
package feedback

import "sync"

// Outcome is the externally visible result of processing one tap, queue
// drain step, or mode change.
type Outcome int

const (
	// OutcomeSuccessOnline - tap accepted and handed to the remote store.
	OutcomeSuccessOnline Outcome = iota + 1
	// OutcomeSuccessQueued - tap accepted and stored in the offline queue.
	OutcomeSuccessQueued
	// OutcomeReadError - the card read failed.
	OutcomeReadError
	// OutcomeUnregistered - unknown identifier (online: reported for
	// registration; offline: dropped).
	OutcomeUnregistered
	// OutcomeQueueFull - tap dropped because the queue is at capacity.
	OutcomeQueueFull
	// OutcomeClockInvalid - tap dropped because the time source is
	// implausible.
	OutcomeClockInvalid
	// OutcomeError - an internal failure not covered by a more specific
	// outcome (for example a persistence error).
	OutcomeError
	// OutcomeSyncing - queue drain in progress.
	OutcomeSyncing
	// OutcomeReady - controller finished initializing.
	OutcomeReady
	// OutcomeModeAuto, OutcomeModeForceOnline, OutcomeModeForceOffline -
	// operator mode indication.
	OutcomeModeAuto
	OutcomeModeForceOnline
	OutcomeModeForceOffline
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccessOnline:    "success_online",
	OutcomeSuccessQueued:    "success_queued",
	OutcomeReadError:        "read_error",
	OutcomeUnregistered:     "unregistered",
	OutcomeQueueFull:        "queue_full",
	OutcomeClockInvalid:     "clock_invalid",
	OutcomeError:            "error",
	OutcomeSyncing:          "syncing",
	OutcomeReady:            "ready",
	OutcomeModeAuto:         "mode_auto",
	OutcomeModeForceOnline:  "mode_force_online",
	OutcomeModeForceOffline: "mode_force_offline",
}

// String returns the stable lowercase name used in logs and the event log.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Indicator is the external feedback sink. Implementations must not block.
type Indicator interface {
	Indicate(Outcome)
}

// IndicatorFunc adapts a function to the Indicator interface.
type IndicatorFunc func(Outcome)

// Indicate implements Indicator.
func (f IndicatorFunc) Indicate(o Outcome) { f(o) }

// Dispatcher coalesces outcomes into a one-slot latch. Indicate may be
// called from any handler; Deliver is called once per loop iteration and
// forwards the latest undelivered outcome to the sink.
type Dispatcher struct {
	mu      sync.Mutex
	sink    Indicator
	pending Outcome
	hasNew  bool
}

// NewDispatcher creates a dispatcher for the given sink. A nil sink
// discards all outcomes.
func NewDispatcher(sink Indicator) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// Indicate latches an outcome for delivery, overriding any undelivered one.
// Never blocks.
func (d *Dispatcher) Indicate(o Outcome) {
	d.mu.Lock()
	d.pending = o
	d.hasNew = true
	d.mu.Unlock()
}

// Deliver forwards the latest undelivered outcome to the sink, if any.
// Returns the delivered outcome and whether one was delivered.
func (d *Dispatcher) Deliver() (Outcome, bool) {
	d.mu.Lock()
	if !d.hasNew {
		d.mu.Unlock()
		return 0, false
	}
	o := d.pending
	d.hasNew = false
	d.mu.Unlock()

	if d.sink != nil {
		d.sink.Indicate(o)
	}
	return o, true
}
