package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DayLayout is the wire and storage format of a calendar day key.
const DayLayout = "2006-01-02"

// Day is a calendar date with no time-of-day or zone. The zero value is
// not a valid day; use IsZero to test for it.
type Day struct {
	t time.Time // always 00:00 UTC
}

// NewDay builds a Day from its components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a "YYYY-MM-DD" key.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, s)
	}
	return Day{t: t}, nil
}

// LocalDay returns the user's local calendar day for instant now, given a
// browser-style timezone offset (minutes to add to local time to get UTC).
func LocalDay(now time.Time, offsetMinutes int) Day {
	local := LocalTime(now, offsetMinutes)
	return NewDay(local.Year(), local.Month(), local.Day())
}

// LocalTime shifts now into the user's wall clock. The returned value carries
// the UTC location; only its fields are meaningful.
func LocalTime(now time.Time, offsetMinutes int) time.Time {
	return now.UTC().Add(-time.Duration(offsetMinutes) * time.Minute)
}

// IsZero reports whether d is unset.
func (d Day) IsZero() bool { return d.t.IsZero() }

// String returns the "YYYY-MM-DD" key.
func (d Day) String() string { return d.t.Format(DayLayout) }

// YearMonth returns the "YYYY-MM" month key.
func (d Day) YearMonth() string { return d.t.Format("2006-01") }

// Weekday returns the day of the week.
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }

// IsWeekend reports whether d is a Saturday or Sunday.
func (d Day) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AddDays returns d shifted by n calendar days.
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// DaysSince returns the number of calendar days from other to d.
func (d Day) DaysSince(other Day) int {
	return int(d.t.Sub(other.t).Hours() / 24)
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }

// Equal reports whether d and other are the same day.
func (d Day) Equal(other Day) bool { return d.t.Equal(other.t) }

// UTCWindow returns the [start, end) UTC instants covering local day d for
// a user at the given timezone offset.
func (d Day) UTCWindow(offsetMinutes int) (time.Time, time.Time) {
	start := d.t.Add(time.Duration(offsetMinutes) * time.Minute)
	return start, start.AddDate(0, 0, 1)
}

// MarshalJSON encodes the day as its key.
func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" key or null.
func (d *Day) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Day{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
