package domain

import "time"

// NormalizeInterval turns a nominal date and two clock values into a
// concrete interval. A start later in the day than the end means the
// session began on the previous day.
func NormalizeInterval(date time.Time, start, end *TimeOfDay) (time.Time, time.Time, error) {
	if start == nil {
		return time.Time{}, time.Time{}, &MissingFieldError{Field: "sleepStart"}
	}
	if end == nil {
		return time.Time{}, time.Time{}, &MissingFieldError{Field: "sleepEnd"}
	}

	day := StartOfDay(date)
	to := end.On(day)
	from := start.On(day)
	if *start > *end {
		from = start.On(day.AddDate(0, 0, -1))
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, &InvalidIntervalError{Start: from, End: to, Reason: "sleep start and end are identical"}
	}
	return from, to, nil
}

// StartOfDay truncates t to midnight, keeping it in the naive UTC frame.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Naive drops the location of t and keeps its wall-clock reading.
func Naive(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// MinusMonths steps back whole calendar months, clamping to the last day of
// the target month (March 31 minus one month is February 28 or 29).
func MinusMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
