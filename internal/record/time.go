package record

import "fmt"

// DateTime is a broken-down wall-clock reading from the timekeeping source.
//
// The source may hand back garbage (dead battery, never set), so readings
// are plausibility-checked rather than trusted. An implausible reading is a
// hard stop for the tap being processed: a bad timestamp cannot be corrected
// after the fact.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Plausible year range for the device's clock. A reading outside this range
// means the clock lost power or was never set.
const (
	MinPlausibleYear = 2024
	MaxPlausibleYear = 2030
)

var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Valid reports whether the reading is plausible. The day check accepts
// Feb 29 in any year; rejecting a real tap is worse than accepting one
// impossible date per four years.
func (d DateTime) Valid() bool {
	return d.ValidInYears(MinPlausibleYear, MaxPlausibleYear)
}

// ValidInYears is Valid with a caller-supplied plausible year range.
func (d DateTime) ValidInYears(minYear, maxYear int) bool {
	if d.Year < minYear || d.Year > maxYear {
		return false
	}
	if d.Month < 1 || d.Month > 12 {
		return false
	}
	if d.Day < 1 || d.Day > daysInMonth[d.Month] {
		return false
	}
	if d.Hour < 0 || d.Hour > 23 {
		return false
	}
	if d.Minute < 0 || d.Minute > 59 {
		return false
	}
	return d.Second >= 0 && d.Second <= 59
}

// Timestamp renders the reading in the fixed wire format
// "YYYY-MM-DDTHH:MM:SS.000Z". The milliseconds field is always zero; the
// clock source has one-second resolution.
func (d DateTime) Timestamp() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.000Z",
		d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}
