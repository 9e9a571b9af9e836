package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/taptrack/taptrack/internal/config"
	"github.com/taptrack/taptrack/internal/eventlog"
	"github.com/taptrack/taptrack/internal/feedback"
	"github.com/taptrack/taptrack/internal/identity"
	"github.com/taptrack/taptrack/internal/queue"
	"github.com/taptrack/taptrack/internal/record"
	"github.com/taptrack/taptrack/internal/uplink"
)

// State identifies the state machine's current state.
type State int

const (
	// StateInitialize - boot announcement; runs once.
	StateInitialize State = iota + 1
	// StateIdle - awaiting a tap, polling confirmations, scheduling drains.
	StateIdle
	// StateProcessCard - read, validate, resolve, route one tap.
	StateProcessCard
	// StateUploadData - live send of the pending record.
	StateUploadData
	// StateQueueData - enqueue the pending record.
	StateQueueData
	// StateSyncQueue - drain send of the queue's head record.
	StateSyncQueue
)

var stateNames = map[State]string{
	StateInitialize:  "initialize",
	StateIdle:        "idle",
	StateProcessCard: "process_card",
	StateUploadData:  "upload_data",
	StateQueueData:   "queue_data",
	StateSyncQueue:   "sync_queue",
}

// String returns the state's stable lowercase name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Deps are the collaborators the controller drives. Queue, Cache, and
// Dispatch are required; EventLog and States are optional.
type Deps struct {
	Reader   CardReader
	Clock    Clock
	Remote   uplink.Client
	Queue    *queue.Queue
	Cache    *identity.Cache
	Dispatch *feedback.Dispatcher
	EventLog *eventlog.Log
	States   *config.StateStore
	Logger   *slog.Logger
}

// Controller owns all mutable control state. It is driven by a single
// goroutine calling Step; only OnCardDetect and OnIdentityChanged may be
// called from other call stacks.
type Controller struct {
	cfg    config.Config
	reader CardReader
	clock  Clock
	remote uplink.Client

	queue    *queue.Queue
	cache    *identity.Cache
	inbox    *identity.Inbox
	tracker  *uplink.Tracker
	dispatch *feedback.Dispatcher
	events   *eventlog.Log
	states   *config.StateStore
	logger   *slog.Logger

	detect *DetectLine
	guard  *TapGuard

	mode config.Mode

	state          State
	stateEnteredAt int64

	// pending is the live record between ProcessCard and its terminal
	// routing. Nil outside that window.
	pending     *record.AttendanceRecord
	liveRetries int

	lastDrainAt int64
}

// New creates a controller in StateInitialize with the given configuration
// and collaborators. The persisted operator mode is loaded when a state
// store is provided.
func New(cfg config.Config, deps Deps) (*Controller, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:      cfg,
		reader:   deps.Reader,
		clock:    deps.Clock,
		remote:   deps.Remote,
		queue:    deps.Queue,
		cache:    deps.Cache,
		inbox:    identity.NewInbox(cfg.InboxCapacity),
		tracker:  uplink.NewTracker(cfg.UploadTimeout.Milliseconds()),
		dispatch: deps.Dispatch,
		events:   deps.EventLog,
		states:   deps.States,
		logger:   logger,
		detect:   &DetectLine{},
		guard:    NewTapGuard(cfg.TapCooldown.Milliseconds()),
		mode:     config.ModeAuto,
		state:    StateInitialize,
	}

	if c.states != nil {
		state, err := c.states.Load()
		if err != nil {
			return nil, err
		}
		c.mode = state.Mode
	}
	return c, nil
}

// Mode returns the operator's current mode preference.
func (c *Controller) Mode() config.Mode { return c.mode }

// SetMode records an explicit operator mode change, persists the
// preference, and indicates the new mode. The state machine itself never
// calls this.
func (c *Controller) SetMode(m config.Mode) error {
	c.mode = m
	switch m {
	case config.ModeForceOnline:
		c.dispatch.Indicate(feedback.OutcomeModeForceOnline)
	case config.ModeForceOffline:
		c.dispatch.Indicate(feedback.OutcomeModeForceOffline)
	default:
		c.dispatch.Indicate(feedback.OutcomeModeAuto)
	}
	if c.states != nil {
		return c.states.Save(config.DeviceState{Mode: m})
	}
	return nil
}

// CurrentState returns the machine's current state.
func (c *Controller) CurrentState() State { return c.state }

// OnCardDetect is the edge-triggered card-present callback target. It does
// nothing but stamp the detect flag; safe from any call stack.
func (c *Controller) OnCardDetect() {
	c.detect.Raise(c.clock.NowMillis())
}

// OnIdentityChanged is the push-style identity-update callback target.
// Changes land in a bounded inbox drained by the loop; safe from any call
// stack.
func (c *Controller) OnIdentityChanged(id, name string, added bool) {
	if !c.inbox.Push(identity.Change{Identifier: id, Name: name, Added: added}) {
		c.logger.Warn("identity inbox full, dropped oldest change")
	}
}

// Online reports the current online decision: the operator mode overrides,
// otherwise readiness of the remote client decides.
func (c *Controller) Online() bool {
	switch c.mode {
	case config.ModeForceOffline:
		return false
	case config.ModeForceOnline:
		return true
	default:
		return c.remote.IsReady()
	}
}

// Run drives the loop until ctx is cancelled. tick is the iteration period;
// zero or negative selects 10ms.
func (c *Controller) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}

// Step performs one loop iteration. Never blocks.
func (c *Controller) Step(ctx context.Context) {
	now := c.clock.NowMillis()

	// Cooperative-scheduling contract: the remote client gets servicing
	// time every iteration.
	c.remote.Service()

	if applied := c.inbox.Apply(c.cache); applied > 0 {
		c.logger.Debug("applied identity changes", "count", applied)
	}

	c.checkWatchdog(ctx, now)

	switch c.state {
	case StateInitialize:
		c.handleInitialize(now)
	case StateIdle:
		c.handleIdle(ctx, now)
	case StateProcessCard:
		c.handleProcessCard(ctx, now)
	case StateUploadData:
		c.handleUploadData(ctx, now)
	case StateQueueData:
		c.handleQueueData(ctx, now)
	case StateSyncQueue:
		c.handleSyncQueue(now)
	}

	if o, ok := c.dispatch.Deliver(); ok {
		c.logger.Debug("indicated", "outcome", o.String())
	}
	if err := c.cache.SaveIfDirty(); err != nil {
		c.logger.Error("identity cache persist failed", "error", err)
	}
}

// checkWatchdog force-transitions a state that has outlived the stuck-state
// timeout. Runs before the handler so a hung state is recovered on the
// first iteration past its deadline. A hung live upload re-queues its
// record; no attendance event is silently lost.
func (c *Controller) checkWatchdog(ctx context.Context, now int64) {
	if c.state == StateInitialize || c.state == StateIdle {
		return
	}
	if now-c.stateEnteredAt <= c.cfg.WatchdogTimeout.Milliseconds() {
		return
	}

	c.logger.Warn("stuck state recovered by watchdog",
		"state", c.state.String(),
		"elapsed_ms", now-c.stateEnteredAt)

	if c.pending != nil && (c.state == StateUploadData || c.state == StateQueueData) {
		rec := *c.pending
		rec.QueuedAtMillis = now
		if err := c.queue.Enqueue(rec); err != nil {
			c.logger.Error("could not queue record from hung state",
				"uid", rec.Identifier, "error", err)
			c.dispatch.Indicate(feedback.OutcomeQueueFull)
		} else {
			c.logEvent(ctx, feedback.OutcomeSuccessQueued, &rec, "")
		}
	}
	c.pending = nil
	c.transition(StateIdle, now)
}

func (c *Controller) transition(next State, now int64) {
	c.state = next
	c.stateEnteredAt = now
}

// logEvent appends to the event log when one is configured. Log failures
// are reported but never affect control flow; the log is observational.
func (c *Controller) logEvent(ctx context.Context, o feedback.Outcome, rec *record.AttendanceRecord, correlationID string) {
	if c.events == nil {
		return
	}
	e := eventlog.Event{
		Outcome:       o.String(),
		CorrelationID: correlationID,
		RecordedAt:    c.clock.NowMillis(),
	}
	if rec != nil {
		e.Identifier = rec.Identifier
		e.Name = rec.DisplayName
		e.Timestamp = rec.Timestamp
		e.Attendance = string(rec.Attendance)
		e.Registration = string(rec.Registration)
	}
	if err := c.events.Append(ctx, e); err != nil {
		c.logger.Error("event log append failed", "error", err)
	}
}
