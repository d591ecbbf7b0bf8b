package domain

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay, wrapping values outside a single day.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return wrapSeconds(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay parses an HH:mm clock value.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", raw, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute(), 0), nil
}

// TimeOfDayOf extracts the clock portion of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

func wrapSeconds(sec int) TimeOfDay {
	sec %= secondsPerDay
	if sec < 0 {
		sec += secondsPerDay
	}
	return TimeOfDay(sec)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int { return int(t) }

// On places the clock value on the calendar day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// String formats the value as HH:mm, dropping seconds.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ElapsedSleep computes the time slept between two clock values, crossing
// midnight when end is earlier than start. The end second counts as slept,
// so 01:00 to 07:00 yields 06:00:01. The result is a clock value, not a
// duration, and wraps past 24h.
func ElapsedSleep(start, end TimeOfDay) TimeOfDay {
	if start > end {
		return wrapSeconds((secondsPerDay - 1 - start.Seconds()) + end.Seconds() + 1)
	}
	return wrapSeconds(end.Seconds() + 1 - start.Seconds())
}
