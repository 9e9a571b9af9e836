package controller

import (
	"context"
	"errors"

	"github.com/taptrack/taptrack/internal/feedback"
	"github.com/taptrack/taptrack/internal/queue"
	"github.com/taptrack/taptrack/internal/record"
	"github.com/taptrack/taptrack/internal/uplink"
)

// handleInitialize announces readiness and enters Idle.
func (c *Controller) handleInitialize(now int64) {
	c.logger.Info("controller ready",
		"mode", string(c.mode),
		"queued", c.queue.Len(),
		"users", c.cache.Len())
	c.dispatch.Indicate(feedback.OutcomeReady)
	c.transition(StateIdle, now)
}

// handleIdle polls the tracked upload, consumes a stabilized card-detect,
// and schedules queue drains.
func (c *Controller) handleIdle(ctx context.Context, now int64) {
	c.pollTrackedUpload(ctx, now)

	if c.detect.Stable(now, c.cfg.DebounceWindow.Milliseconds()) {
		c.detect.Consume()
		c.transition(StateProcessCard, now)
		return
	}

	if c.shouldDrain(now) {
		c.lastDrainAt = now
		c.transition(StateSyncQueue, now)
	}
}

// pollTrackedUpload observes confirmation or timeout of the in-flight
// upload. Confirmations are consumed exactly once; the matching queue
// record (if any) is removed at most once.
func (c *Controller) pollTrackedUpload(ctx context.Context, now int64) {
	if !c.tracker.Active() {
		return
	}
	cid := c.tracker.CorrelationID()

	if c.remote.IsConfirmed(cid) {
		removed, err := c.queue.RemoveByCorrelationID(cid)
		if err != nil {
			c.logger.Error("confirmed record removal failed", "correlation_id", cid, "error", err)
		}
		c.logger.Info("upload confirmed",
			"correlation_id", cid,
			"uid", c.tracker.Identifier(),
			"from_queue", removed)
		if removed {
			c.logEvent(ctx, feedback.OutcomeSuccessOnline, nil, cid)
		}
		c.tracker.Clear()
		return
	}

	if c.tracker.TimedOut(now) {
		c.logger.Warn("upload timed out",
			"correlation_id", cid,
			"uid", c.tracker.Identifier())
		// A timed-out drain record is still in the queue: fail it to the
		// tail so it does not block the rest. A live record was accepted
		// for transmission and is not re-enqueued here.
		if c.tracker.TrackedOrigin() == uplink.OriginQueue {
			if _, err := c.queue.FailByCorrelationID(cid, c.cfg.QueueRetryWarn); err != nil {
				c.logger.Error("failing timed-out record", "correlation_id", cid, "error", err)
			}
		}
		c.tracker.Clear()
	}
}

// shouldDrain decides whether to enter SyncQueue: queue non-empty, system
// online, tracker idle, and the drain interval elapsed.
func (c *Controller) shouldDrain(now int64) bool {
	if c.queue.IsEmpty() || c.tracker.Active() || !c.Online() {
		return false
	}
	return c.lastDrainAt == 0 || now-c.lastDrainAt >= c.cfg.SyncInterval.Milliseconds()
}

// handleProcessCard reads the card, validates the clock, applies the tap
// guard, resolves identity, and routes the tap.
func (c *Controller) handleProcessCard(ctx context.Context, now int64) {
	uid, ok := c.reader.TryReadIdentifier()
	if !ok {
		// A failed read still claims the cooldown slot (under the empty
		// identifier) so a flaky reader cannot storm the indicator.
		if !c.guard.Suppressed("", now) {
			c.dispatch.Indicate(feedback.OutcomeReadError)
			c.logEvent(ctx, feedback.OutcomeReadError, nil, "")
		}
		c.guard.Claim("", now)
		c.transition(StateIdle, now)
		return
	}

	wall := c.clock.Now()
	if !wall.ValidInYears(c.cfg.MinYear, c.cfg.MaxYear) {
		// Hard stop for this tap: a bad timestamp cannot be corrected
		// after the fact.
		c.logger.Error("clock reading implausible", "uid", uid)
		c.dispatch.Indicate(feedback.OutcomeClockInvalid)
		c.logEvent(ctx, feedback.OutcomeClockInvalid, nil, "")
		c.guard.Claim(uid, now)
		c.transition(StateIdle, now)
		return
	}

	if c.guard.Suppressed(uid, now) || c.tracker.InFlightFor(uid) {
		c.logger.Debug("duplicate tap suppressed", "uid", uid)
		c.transition(StateIdle, now)
		return
	}
	c.guard.Claim(uid, now)

	registered := c.cache.IsRegistered(uid)
	rec := record.AttendanceRecord{
		Identifier:   uid,
		DisplayName:  c.cache.Name(uid),
		Timestamp:    wall.Timestamp(),
		Attendance:   record.StatusForHour(wall.Hour, c.cfg.OnTimeHour),
		Registration: record.StatusRegistered,
	}
	if !registered {
		rec.Registration = record.StatusUnregistered
	}
	c.cache.RecordTap(uid, now)

	online := c.Online()
	switch {
	case online && registered:
		c.pending = &rec
		c.liveRetries = 0
		c.transition(StateUploadData, now)
	case online && !registered:
		// Fire-and-forget to the pending-registration channel: not
		// queued, not retried.
		c.remote.SendPendingRegistration(uid, rec.Timestamp)
		c.logger.Info("unregistered identifier reported", "uid", uid)
		c.dispatch.Indicate(feedback.OutcomeUnregistered)
		c.logEvent(ctx, feedback.OutcomeUnregistered, &rec, "")
		c.transition(StateIdle, now)
	case !online && registered:
		c.pending = &rec
		c.transition(StateQueueData, now)
	default:
		// Unregistered while offline: no local source of truth to
		// register against, so the tap is dropped and reported.
		c.logger.Warn("unregistered identifier while offline, dropped", "uid", uid)
		c.dispatch.Indicate(feedback.OutcomeUnregistered)
		c.logEvent(ctx, feedback.OutcomeUnregistered, &rec, "")
		c.transition(StateIdle, now)
	}
}

// handleUploadData sends the pending live record. Queuing is the retry
// mechanism: an unready client falls straight through to QueueData, and
// immediate send failures retry at most LiveRetryLimit extra iterations
// before doing the same.
func (c *Controller) handleUploadData(ctx context.Context, now int64) {
	if c.pending == nil {
		c.transition(StateIdle, now)
		return
	}
	// At most one upload in flight: a tap arriving while the tracker is
	// busy queues, before the remote ever sees the record.
	if c.tracker.Active() {
		c.transition(StateQueueData, now)
		return
	}
	if !c.remote.IsReady() {
		c.transition(StateQueueData, now)
		return
	}

	rec := *c.pending
	cid := c.remote.Send(rec)
	if cid == "" {
		c.liveRetries++
		if c.liveRetries > c.cfg.LiveRetryLimit {
			c.logger.Warn("live send rejected, falling back to queue",
				"uid", rec.Identifier, "attempts", c.liveRetries)
			c.transition(StateQueueData, now)
		}
		// Otherwise stay in UploadData; the next iteration retries.
		// The watchdog bounds how long that can go on.
		return
	}

	if !c.tracker.Begin(cid, rec.Identifier, uplink.OriginLive, now) {
		// Unreachable while the Active gate above holds; a tracked upload
		// must never be clobbered regardless.
		c.logger.Error("tracker busy on live send", "correlation_id", cid)
		c.transition(StateQueueData, now)
		return
	}

	c.logger.Info("attendance sent",
		"uid", rec.Identifier,
		"name", rec.DisplayName,
		"correlation_id", cid)
	c.dispatch.Indicate(feedback.OutcomeSuccessOnline)
	c.logEvent(ctx, feedback.OutcomeSuccessOnline, &rec, cid)
	c.pending = nil
	// Confirmation is awaited asynchronously in Idle, never here.
	c.transition(StateIdle, now)
}

// handleQueueData enqueues the pending record. At capacity the tap is
// dropped with a reported error; there is no unbounded growth.
func (c *Controller) handleQueueData(ctx context.Context, now int64) {
	if c.pending == nil {
		c.transition(StateIdle, now)
		return
	}

	rec := *c.pending
	rec.QueuedAtMillis = now
	err := c.queue.Enqueue(rec)
	switch {
	case errors.Is(err, queue.ErrFull):
		c.logger.Warn("queue full, tap dropped", "uid", rec.Identifier)
		c.dispatch.Indicate(feedback.OutcomeQueueFull)
		c.logEvent(ctx, feedback.OutcomeQueueFull, &rec, "")
	case err != nil:
		c.logger.Error("enqueue failed", "uid", rec.Identifier, "error", err)
		c.dispatch.Indicate(feedback.OutcomeError)
	default:
		c.dispatch.Indicate(feedback.OutcomeSuccessQueued)
		c.logEvent(ctx, feedback.OutcomeSuccessQueued, &rec, "")
	}
	c.pending = nil
	c.transition(StateIdle, now)
}

// handleSyncQueue sends the queue's head record with the same send/track
// logic as UploadData. Failures move the head to the tail so one bad record
// cannot block the queue.
func (c *Controller) handleSyncQueue(now int64) {
	head, ok := c.queue.Peek()
	if !ok || !c.remote.IsReady() {
		c.transition(StateIdle, now)
		return
	}

	c.dispatch.Indicate(feedback.OutcomeSyncing)

	cid := c.remote.Send(head)
	if cid == "" {
		if err := c.queue.FailHead(c.cfg.QueueRetryWarn); err != nil {
			c.logger.Error("failing head record", "error", err)
		}
		c.transition(StateIdle, now)
		return
	}

	if err := c.queue.MarkSent(cid); err != nil {
		c.logger.Error("marking head record sent", "error", err)
	}
	if !c.tracker.Begin(cid, head.Identifier, uplink.OriginQueue, now) {
		c.logger.Error("tracker busy on drain send", "correlation_id", cid)
	}
	c.logger.Info("drain send started",
		"uid", head.Identifier,
		"correlation_id", cid,
		"queued", c.queue.Len())
	c.transition(StateIdle, now)
}
