// Package record defines the attendance record model shared by the queue,
// the uplink, and the controller state machine.
//
// A record is either "fresh" (CorrelationID empty, RetryCount zero) or
// "in flight/retried" (CorrelationID set after at least one send attempt).
// Records are created by the state machine on a successful card read and are
// mutated only by the queue-drain path; the cooperative single-threaded
// scheduling model guarantees a single logical owner at any time.
package record

// AttendanceStatus classifies a tap relative to the on-time threshold.
type AttendanceStatus string

const (
	// StatusPresent - the tap happened before the on-time hour.
	StatusPresent AttendanceStatus = "present"
	// StatusLate - the tap happened at or after the on-time hour.
	StatusLate AttendanceStatus = "late"
)

// RegistrationStatus records whether the identifier was known at tap time.
type RegistrationStatus string

const (
	// StatusRegistered - the identifier resolved in the identity cache.
	StatusRegistered RegistrationStatus = "registered"
	// StatusUnregistered - the identifier was unknown at tap time.
	StatusUnregistered RegistrationStatus = "unregistered"
)

// DefaultOnTimeHour is the boundary between present and late.
// Policy is a half-open interval: hour < threshold is present,
// hour >= threshold is late.
const DefaultOnTimeHour = 9

// AttendanceRecord is one captured tap awaiting durable delivery.
//
// JSON field names match the persisted queue document layout, which is
// rewritten as a whole on every queue mutation.
type AttendanceRecord struct {
	// Identifier is the opaque card identifier (uppercase hex).
	Identifier string `json:"uid"`

	// DisplayName is the resolved bearer name. May be empty.
	DisplayName string `json:"name"`

	// Timestamp is the capture time in fixed ISO form
	// "YYYY-MM-DDTHH:MM:SS.000Z".
	Timestamp string `json:"timestamp"`

	// Attendance is present or late, decided at capture time.
	Attendance AttendanceStatus `json:"attendanceStatus"`

	// Registration is registered or unregistered, decided at capture time.
	Registration RegistrationStatus `json:"registrationStatus"`

	// CorrelationID is empty until an upload attempt is made, then holds the
	// token returned by the remote client's accept-for-send call.
	CorrelationID string `json:"correlationId"`

	// RetryCount is the number of send attempts made for this record.
	RetryCount int `json:"retryCount"`

	// QueuedAtMillis is the monotonic-clock reading when the record was
	// enqueued. Zero for records that were never queued.
	QueuedAtMillis int64 `json:"queuedAt"`
}

// Fresh reports whether the record has never been submitted for upload.
func (r AttendanceRecord) Fresh() bool {
	return r.CorrelationID == "" && r.RetryCount == 0
}

// StatusForHour applies the on-time policy to an hour of day.
func StatusForHour(hour, onTimeHour int) AttendanceStatus {
	if hour < onTimeHour {
		return StatusPresent
	}
	return StatusLate
}
