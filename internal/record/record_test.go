package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFresh(t *testing.T) {
	r := AttendanceRecord{Identifier: "AB12"}
	assert.True(t, r.Fresh(), "new record should be fresh")

	r.CorrelationID = "c1"
	assert.False(t, r.Fresh(), "record with correlation id is in flight")

	r = AttendanceRecord{Identifier: "AB12", RetryCount: 1}
	assert.False(t, r.Fresh(), "retried record is not fresh")
}

func TestStatusForHour(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want AttendanceStatus
	}{
		{"well before threshold", 7, StatusPresent},
		{"last on-time hour", 8, StatusPresent},
		{"exactly at threshold", 9, StatusLate},
		{"after threshold", 10, StatusLate},
		{"midnight", 0, StatusPresent},
		{"end of day", 23, StatusLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForHour(tt.hour, DefaultOnTimeHour))
		})
	}
}
