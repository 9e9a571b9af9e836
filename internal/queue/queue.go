// Package queue implements the bounded durable queue of attendance records
// awaiting delivery.
//
// Ordering is arrival order, except that a record whose send failed or timed
// out is moved to the tail so a persistently bad record cannot block the
// rest of the queue. The whole queue is rewritten to its backing file on
// every mutation; a power loss can lose at most the in-memory delta since
// the last persist and can never corrupt a previously valid image.
//
// The queue is touched exclusively by the single control loop, so it needs
// no locking.
package queue

import (
	"fmt"
	"log/slog"

	"github.com/taptrack/taptrack/internal/record"
	"github.com/taptrack/taptrack/internal/storage"
)

// DefaultMaxSize bounds the number of offline records.
const DefaultMaxSize = 100

// DefaultWarnThreshold is the fill level at which enqueues start logging
// capacity warnings.
const DefaultWarnThreshold = 80

// ErrFull is returned when an enqueue is attempted at capacity. The tap is
// dropped and reported; existing records are never displaced.
var ErrFull = fmt.Errorf("attendance queue full")

// Queue is a bounded FIFO of attendance records with retry reordering.
type Queue struct {
	path    string
	maxSize int
	warnAt  int
	records []record.AttendanceRecord
	logger  *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxSize overrides the capacity bound.
func WithMaxSize(n int) Option {
	return func(q *Queue) { q.maxSize = n }
}

// WithWarnThreshold overrides the capacity warning level.
func WithWarnThreshold(n int) Option {
	return func(q *Queue) { q.warnAt = n }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Open loads the queue from its backing file, creating an empty queue when
// no file exists. A corrupt file is an error: silently discarding queued
// attendance is never acceptable.
func Open(path string, opts ...Option) (*Queue, error) {
	q := &Queue{
		path:    path,
		maxSize: DefaultMaxSize,
		warnAt:  DefaultWarnThreshold,
		records: make([]record.AttendanceRecord, 0, 16),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}

	var loaded []record.AttendanceRecord
	ok, err := storage.LoadJSON(path, &loaded)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	if ok {
		q.records = loaded
		if len(loaded) > 0 {
			q.logger.Info("loaded queued records", "count", len(loaded))
		}
	}
	return q, nil
}

// Enqueue appends rec and persists. Returns ErrFull at capacity, leaving
// the queue unchanged.
func (q *Queue) Enqueue(rec record.AttendanceRecord) error {
	if len(q.records) >= q.maxSize {
		return ErrFull
	}

	q.records = append(q.records, rec)

	if len(q.records) >= q.warnAt {
		q.logger.Warn("queue approaching capacity",
			"size", len(q.records), "max", q.maxSize,
			"percent", q.CapacityPercent())
	}

	if err := q.persist(); err != nil {
		// Roll the append back so the in-memory queue matches what the
		// caller was told: a record reported as not queued must not drain
		// later.
		q.records = q.records[:len(q.records)-1]
		return err
	}
	q.logger.Info("queued attendance record",
		"uid", rec.Identifier, "size", len(q.records), "max", q.maxSize)
	return nil
}

// Peek returns a copy of the head record without removing it.
func (q *Queue) Peek() (record.AttendanceRecord, bool) {
	if len(q.records) == 0 {
		return record.AttendanceRecord{}, false
	}
	return q.records[0], true
}

// MarkSent stamps the head record with a correlation id, bumps its retry
// count, and persists. Called when a drain attempt is accepted for
// transmission.
func (q *Queue) MarkSent(correlationID string) error {
	if len(q.records) == 0 {
		return nil
	}
	q.records[0].CorrelationID = correlationID
	q.records[0].RetryCount++
	return q.persist()
}

// RemoveByCorrelationID removes the record carrying the given correlation
// id, if any. Returns whether a record was removed; at most one record is
// ever removed per call, which keeps confirmation consumption idempotent.
func (q *Queue) RemoveByCorrelationID(correlationID string) (bool, error) {
	if correlationID == "" {
		return false, nil
	}
	for i, rec := range q.records {
		if rec.CorrelationID == correlationID {
			q.records = append(q.records[:i], q.records[i+1:]...)
			if err := q.persist(); err != nil {
				return false, err
			}
			q.logger.Info("confirmed and removed record",
				"uid", rec.Identifier, "correlation_id", correlationID,
				"remaining", len(q.records))
			return true, nil
		}
	}
	return false, nil
}

// FailHead bumps the head record's retry count and moves it to the tail,
// then persists. A retry count past warnRetries is logged but the record is
// retried forever; already-queued attendance is never silently dropped.
func (q *Queue) FailHead(warnRetries int) error {
	if len(q.records) == 0 {
		return nil
	}
	q.records[0].RetryCount++
	q.records[0].CorrelationID = ""
	if q.records[0].RetryCount > warnRetries {
		q.logger.Warn("record retry count exceeded bound",
			"uid", q.records[0].Identifier,
			"retries", q.records[0].RetryCount, "bound", warnRetries)
	}
	if len(q.records) > 1 {
		head := q.records[0]
		q.records = append(q.records[1:], head)
	}
	return q.persist()
}

// FailByCorrelationID is FailHead for a record identified by correlation id
// rather than position. Used when an upload times out after the queue has
// already been reordered behind it.
func (q *Queue) FailByCorrelationID(correlationID string, warnRetries int) (bool, error) {
	if correlationID == "" {
		return false, nil
	}
	for i := range q.records {
		if q.records[i].CorrelationID != correlationID {
			continue
		}
		q.records[i].RetryCount++
		q.records[i].CorrelationID = ""
		if q.records[i].RetryCount > warnRetries {
			q.logger.Warn("record retry count exceeded bound",
				"uid", q.records[i].Identifier,
				"retries", q.records[i].RetryCount, "bound", warnRetries)
		}
		failed := q.records[i]
		q.records = append(q.records[:i], q.records[i+1:]...)
		q.records = append(q.records, failed)
		if err := q.persist(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Len returns the number of queued records.
func (q *Queue) Len() int { return len(q.records) }

// IsEmpty reports whether the queue holds no records.
func (q *Queue) IsEmpty() bool { return len(q.records) == 0 }

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool { return len(q.records) >= q.maxSize }

// CapacityPercent returns the fill level as a percentage.
func (q *Queue) CapacityPercent() int {
	return len(q.records) * 100 / q.maxSize
}

// Records returns a copy of all queued records in order.
func (q *Queue) Records() []record.AttendanceRecord {
	out := make([]record.AttendanceRecord, len(q.records))
	copy(out, q.records)
	return out
}

// Stats summarizes the queue for operator surfaces.
type Stats struct {
	Total   int // queued records
	Pending int // records with a correlation id set (send in progress)
	Stalled int // records retried more than three times
}

// Stats computes queue statistics.
func (q *Queue) Stats() Stats {
	var s Stats
	s.Total = len(q.records)
	for _, rec := range q.records {
		if rec.CorrelationID != "" {
			s.Pending++
		}
		if rec.RetryCount > 3 {
			s.Stalled++
		}
	}
	return s
}

// Clear discards all records and removes the backing file. Administrative
// action only.
func (q *Queue) Clear() error {
	q.records = q.records[:0]
	if err := storage.Remove(q.path); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	q.logger.Info("queue cleared")
	return nil
}

func (q *Queue) persist() error {
	if err := storage.SaveJSON(q.path, q.records); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}
