package controller

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptrack/taptrack/internal/config"
	"github.com/taptrack/taptrack/internal/eventlog"
	"github.com/taptrack/taptrack/internal/feedback"
	"github.com/taptrack/taptrack/internal/identity"
	"github.com/taptrack/taptrack/internal/queue"
	"github.com/taptrack/taptrack/internal/record"
	"github.com/taptrack/taptrack/internal/testutil"
	"github.com/taptrack/taptrack/internal/uplink"
)

// outcomeRecorder captures delivered feedback for assertions.
type outcomeRecorder struct {
	outcomes []feedback.Outcome
}

func (r *outcomeRecorder) Indicate(o feedback.Outcome) { r.outcomes = append(r.outcomes, o) }

func (r *outcomeRecorder) last() (feedback.Outcome, bool) {
	if len(r.outcomes) == 0 {
		return 0, false
	}
	return r.outcomes[len(r.outcomes)-1], true
}

type fixture struct {
	cfg    config.Config
	clock  *testutil.Clock
	reader *testutil.Reader
	remote *uplink.MemoryClient
	queue  *queue.Queue
	cache  *identity.Cache
	sink   *outcomeRecorder
	ctrl   *Controller
}

type fixtureOption func(*config.Config, *fixture)

func withQueueSize(n int) fixtureOption {
	return func(cfg *config.Config, _ *fixture) {
		cfg.MaxQueueSize = n
		cfg.QueueWarnThreshold = n
	}
}

func withLiveRetryLimit(n int) fixtureOption {
	return func(cfg *config.Config, _ *fixture) { cfg.LiveRetryLimit = n }
}

func withTapCooldown(ms int64) fixtureOption {
	return func(cfg *config.Config, _ *fixture) { cfg.TapCooldown = time.Duration(ms) * time.Millisecond }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		cfg:    config.Default(),
		clock:  testutil.NewClock(),
		reader: &testutil.Reader{},
		remote: uplink.NewMemoryClient(uplink.NewFixedGenerator("c-1", "c-2", "c-3", "c-4", "c-5")),
		sink:   &outcomeRecorder{},
	}
	for _, opt := range opts {
		opt(&f.cfg, f)
	}

	dir := t.TempDir()
	var err error
	f.queue, err = queue.Open(filepath.Join(dir, "queue.json"),
		queue.WithMaxSize(f.cfg.MaxQueueSize),
		queue.WithWarnThreshold(f.cfg.QueueWarnThreshold))
	require.NoError(t, err)
	f.cache, err = identity.Open(filepath.Join(dir, "users.json"), nil)
	require.NoError(t, err)
	f.cache.Register("AB12", "Ada")

	f.ctrl, err = New(f.cfg, Deps{
		Reader:   f.reader,
		Clock:    f.clock,
		Remote:   f.remote,
		Queue:    f.queue,
		Cache:    f.cache,
		Dispatch: feedback.NewDispatcher(f.sink),
		States:   config.NewStateStore(filepath.Join(dir, "state.json")),
	})
	require.NoError(t, err)

	// Initialize -> Idle.
	f.ctrl.Step(context.Background())
	require.Equal(t, StateIdle, f.ctrl.CurrentState())
	return f
}

func (f *fixture) step(t *testing.T) {
	t.Helper()
	f.ctrl.Step(context.Background())
}

// tap simulates one physical tap: queue the read result, raise the detect
// line, let the debounce window pass, then run the loop until the machine
// is back in Idle.
func (f *fixture) tap(t *testing.T, id string) {
	t.Helper()
	if id == "" {
		f.reader.PresentFailure()
	} else {
		f.reader.Present(id)
	}
	f.ctrl.OnCardDetect()
	f.clock.Advance(f.cfg.DebounceWindow.Milliseconds() + 5)

	for i := 0; i < 10; i++ {
		f.step(t)
		if f.ctrl.CurrentState() == StateIdle && i > 0 {
			return
		}
	}
	t.Fatalf("machine did not return to Idle, stuck in %s", f.ctrl.CurrentState())
}

func TestScenarioOfflineTapQueues(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)

	f.tap(t, "AB12")

	require.Equal(t, 1, f.queue.Len())
	head, _ := f.queue.Peek()
	assert.Equal(t, "AB12", head.Identifier)
	assert.Equal(t, "Ada", head.DisplayName)
	assert.Equal(t, record.StatusPresent, head.Attendance)
	assert.Equal(t, record.StatusRegistered, head.Registration)
	assert.True(t, head.Fresh())

	last, ok := f.sink.last()
	require.True(t, ok)
	assert.Equal(t, feedback.OutcomeSuccessQueued, last)
}

func TestScenarioQueueDrainConfirms(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)
	f.tap(t, "AB12")
	require.Equal(t, 1, f.queue.Len())

	f.remote.SetReady(true)

	f.step(t) // Idle schedules the drain
	require.Equal(t, StateSyncQueue, f.ctrl.CurrentState())
	f.step(t) // drain send starts, tracker holds c-1
	f.step(t) // Service confirms, Idle consumes and removes

	assert.Equal(t, 0, f.queue.Len())
	require.Len(t, f.remote.Sent(), 1)
	assert.Equal(t, "AB12", f.remote.Sent()[0].Identifier)

	// A second drain pass must not create a duplicate remote record.
	f.clock.Advance(f.cfg.SyncInterval.Milliseconds() + 1)
	f.step(t)
	f.step(t)
	assert.Len(t, f.remote.Sent(), 1)
}

func TestScenarioUnregisteredOnline(t *testing.T) {
	f := newFixture(t)

	f.tap(t, "FF00")

	assert.Equal(t, 0, f.queue.Len(), "no attendance record is created anywhere")
	assert.Empty(t, f.remote.Sent())
	assert.Equal(t, []string{"FF00"}, f.remote.PendingRegistrations(),
		"pending-registration notification sent exactly once")

	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeUnregistered, last)
}

func TestScenarioDuplicateTapSuppressed(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)

	f.tap(t, "AB12")
	require.Equal(t, 1, f.queue.Len())

	f.clock.Advance(10_000) // well inside the 30s cooldown
	f.tap(t, "AB12")

	assert.Equal(t, 1, f.queue.Len(), "second tap produces no record")
	assert.Empty(t, f.remote.Sent(), "and no send")
}

func TestScenarioQueueFull(t *testing.T) {
	f := newFixture(t, withQueueSize(1))
	f.remote.SetReady(false)

	f.cache.Register("CD34", "Chuck")
	f.tap(t, "AB12")
	require.Equal(t, 1, f.queue.Len())

	f.clock.Advance(60_000)
	f.tap(t, "CD34")

	assert.Equal(t, 1, f.queue.Len(), "queue size unchanged")
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeQueueFull, last)
}

func TestScenarioUploadTimeoutFailsDrainRecordToTail(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)
	f.cache.Register("CD34", "Chuck")
	f.tap(t, "AB12")
	f.clock.Advance(60_000)
	f.tap(t, "CD34")
	require.Equal(t, 2, f.queue.Len())

	f.remote.SetReady(true)
	f.remote.SetConfirmAfter(-1) // confirmation never arrives

	f.step(t) // schedule drain
	f.step(t) // send head AB12, tracker holds its id

	f.clock.Advance(f.cfg.UploadTimeout.Milliseconds() + 1)
	f.step(t) // Idle observes the timeout

	recs := f.queue.Records()
	require.Len(t, recs, 2, "timed-out record stays in the queue")
	assert.Equal(t, "CD34", recs[0].Identifier)
	assert.Equal(t, "AB12", recs[1].Identifier, "timed-out record moved to the tail")
	assert.Equal(t, 2, recs[1].RetryCount)
	assert.Empty(t, recs[1].CorrelationID)
}

func TestLiveTapOnlineSendsAndConfirms(t *testing.T) {
	f := newFixture(t)

	f.tap(t, "AB12")

	assert.Equal(t, 0, f.queue.Len(), "live path never queues on success")
	require.Len(t, f.remote.Sent(), 1)
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeSuccessOnline, last)

	f.step(t) // confirmation consumed in Idle
	f.step(t)
	assert.Equal(t, 0, f.queue.Len())
}

func TestLiveTapLateAfterThreshold(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)
	f.clock.SetHour(9)

	f.tap(t, "AB12")

	head, ok := f.queue.Peek()
	require.True(t, ok)
	assert.Equal(t, record.StatusLate, head.Attendance, "9:00 is already late")
}

func TestSecondTapDuringInFlightUploadSuppressed(t *testing.T) {
	// Cooldown shorter than the upload timeout so the second tap lands
	// with an expired cooldown while the upload is still in flight.
	f := newFixture(t, withTapCooldown(1_000))
	f.remote.SetConfirmAfter(-1) // upload stays in flight

	f.tap(t, "AB12")
	require.Len(t, f.remote.Sent(), 1)

	// Past the cooldown but the upload for AB12 is still in flight.
	f.clock.Advance(2_000)
	f.tap(t, "AB12")

	assert.Len(t, f.remote.Sent(), 1, "no double submit during network latency")
	assert.Equal(t, 0, f.queue.Len())
}

func TestSecondIdentifierDuringInFlightUploadQueues(t *testing.T) {
	f := newFixture(t)
	f.cache.Register("CD34", "Chuck")
	f.remote.SetConfirmAfter(-1) // upload stays in flight

	f.tap(t, "AB12")
	require.Len(t, f.remote.Sent(), 1)

	f.clock.Advance(2_000)
	f.tap(t, "CD34")

	// The second tap must queue, never start a concurrent upload.
	assert.Len(t, f.remote.Sent(), 1, "remote never sees the second record live")
	require.Equal(t, 1, f.queue.Len())
	head, _ := f.queue.Peek()
	assert.Equal(t, "CD34", head.Identifier)
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeSuccessQueued, last)
}

func TestReadFailure(t *testing.T) {
	f := newFixture(t)

	f.tap(t, "")

	assert.Equal(t, 0, f.queue.Len())
	assert.Empty(t, f.remote.Sent())
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeReadError, last)
}

func TestRepeatedReadFailuresDamped(t *testing.T) {
	f := newFixture(t)

	f.tap(t, "")
	f.clock.Advance(1_000)
	f.tap(t, "")

	count := 0
	for _, o := range f.sink.outcomes {
		if o == feedback.OutcomeReadError {
			count++
		}
	}
	assert.Equal(t, 1, count, "second failure inside the cooldown is not re-indicated")
}

func TestClockInvalidHardStop(t *testing.T) {
	f := newFixture(t)
	f.clock.SetWall(record.DateTime{Year: 2000, Month: 1, Day: 1})

	f.tap(t, "AB12")

	assert.Equal(t, 0, f.queue.Len())
	assert.Empty(t, f.remote.Sent())
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeClockInvalid, last)
}

func TestUnregisteredOfflineDropped(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)

	f.tap(t, "FF00")

	assert.Equal(t, 0, f.queue.Len())
	assert.Empty(t, f.remote.PendingRegistrations(),
		"offline: nothing reaches the registration channel")
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeUnregistered, last)
}

func TestForceOfflineQueuesDespiteReadyClient(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SetMode(config.ModeForceOffline))

	f.tap(t, "AB12")

	assert.Equal(t, 1, f.queue.Len())
	assert.Empty(t, f.remote.Sent())
}

func TestForceOnlineWithUnreadyClientFallsThroughToQueue(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SetMode(config.ModeForceOnline))
	f.remote.SetReady(false)

	f.tap(t, "AB12")

	assert.Equal(t, 1, f.queue.Len(), "UploadData falls through to QueueData, no retry loop")
}

func TestLiveSendRejectionFallsBackToQueue(t *testing.T) {
	f := newFixture(t)
	f.remote.SetRefuseSends(true)

	f.tap(t, "AB12")

	assert.Equal(t, 1, f.queue.Len(), "bounded retries then queue fallback")
	last, _ := f.sink.last()
	assert.Equal(t, feedback.OutcomeSuccessQueued, last)
}

func TestWatchdogRecoversHungUpload(t *testing.T) {
	f := newFixture(t, withLiveRetryLimit(1_000_000))
	f.remote.SetRefuseSends(true)

	f.reader.Present("AB12")
	f.ctrl.OnCardDetect()
	f.clock.Advance(f.cfg.DebounceWindow.Milliseconds() + 5)
	f.step(t) // Idle -> ProcessCard
	f.step(t) // ProcessCard -> UploadData
	require.Equal(t, StateUploadData, f.ctrl.CurrentState())

	// The send keeps being rejected and the retry bound never trips.
	for i := 0; i < 5; i++ {
		f.step(t)
		require.Equal(t, StateUploadData, f.ctrl.CurrentState())
	}

	f.clock.Advance(f.cfg.WatchdogTimeout.Milliseconds() + 1)
	f.step(t)

	assert.Equal(t, StateIdle, f.ctrl.CurrentState(),
		"watchdog forces the machine back to Idle")
	assert.Equal(t, 1, f.queue.Len(),
		"the hung live record is enqueued, not lost")
}

func TestDrainRespectsInterval(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)
	f.cache.Register("CD34", "Chuck")
	f.tap(t, "AB12")
	f.clock.Advance(60_000)
	f.tap(t, "CD34")
	require.Equal(t, 2, f.queue.Len())

	f.remote.SetReady(true)
	f.step(t) // first drain scheduled immediately
	f.step(t) // send
	f.step(t) // confirm + remove
	require.Equal(t, 1, f.queue.Len())

	// Next drain only after the sync interval.
	f.step(t)
	f.step(t)
	assert.Equal(t, 1, f.queue.Len())

	f.clock.Advance(f.cfg.SyncInterval.Milliseconds() + 1)
	f.step(t)
	f.step(t)
	f.step(t)
	assert.Equal(t, 0, f.queue.Len())
}

func TestSetModePersists(t *testing.T) {
	dir := t.TempDir()
	states := config.NewStateStore(filepath.Join(dir, "state.json"))

	q, err := queue.Open(filepath.Join(dir, "queue.json"))
	require.NoError(t, err)
	cache, err := identity.Open(filepath.Join(dir, "users.json"), nil)
	require.NoError(t, err)

	ctrl, err := New(config.Default(), Deps{
		Reader:   &testutil.Reader{},
		Clock:    testutil.NewClock(),
		Remote:   uplink.NewMemoryClient(nil),
		Queue:    q,
		Cache:    cache,
		Dispatch: feedback.NewDispatcher(nil),
		States:   states,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.SetMode(config.ModeForceOffline))

	reloaded, err := states.Load()
	require.NoError(t, err)
	assert.Equal(t, config.ModeForceOffline, reloaded.Mode)
}

func TestTapUpdatesIdentityStats(t *testing.T) {
	f := newFixture(t)
	f.remote.SetReady(false)

	f.tap(t, "AB12")

	e, ok := f.cache.Lookup("AB12")
	require.True(t, ok)
	assert.Equal(t, 1, e.TapCount)
	assert.Positive(t, e.LastSeen)
}

func TestIdentityChangeAppliedNextIteration(t *testing.T) {
	f := newFixture(t)

	f.ctrl.OnIdentityChanged("CD34", "Chuck", true)
	f.step(t)
	assert.True(t, f.cache.IsRegistered("CD34"))

	f.ctrl.OnIdentityChanged("CD34", "", false)
	f.step(t)
	assert.False(t, f.cache.IsRegistered("CD34"))
}

func TestOutcomesReachEventLog(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.Open(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	defer log.Close()

	f := newFixture(t)
	f.ctrl.events = log
	f.remote.SetReady(false)

	f.tap(t, "AB12")

	events, err := log.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "AB12", events[0].Identifier)
	assert.Equal(t, "success_queued", events[0].Outcome)
	assert.Equal(t, "2025-06-15T08:30:00.000Z", events[0].Timestamp)
}

func TestDebounceWindowFiltersShortPulse(t *testing.T) {
	f := newFixture(t)
	f.reader.Present("AB12")
	f.ctrl.OnCardDetect()

	// Step before the stabilization window elapses: no transition.
	f.clock.Advance(5)
	f.step(t)
	assert.Equal(t, StateIdle, f.ctrl.CurrentState())

	f.clock.Advance(f.cfg.DebounceWindow.Milliseconds())
	f.step(t)
	assert.Equal(t, StateProcessCard, f.ctrl.CurrentState())
}
