package domain

import (
	"fmt"
	"time"
)

// Quality is the subjective rating attached to a sleep session.
type Quality int

const (
	QualityBad Quality = iota
	QualityOK
	QualityGood
)

var qualityNames = [...]string{"BAD", "OK", "GOOD"}

// ParseQuality maps BAD, OK or GOOD onto a Quality.
func ParseQuality(raw string) (Quality, error) {
	for i, name := range qualityNames {
		if raw == name {
			return Quality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sleep quality %q", raw)
}

// Valid reports whether q is one of the declared ratings.
func (q Quality) Valid() bool {
	return q >= QualityBad && q <= QualityGood
}

func (q Quality) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualityNames[q]
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("invalid sleep quality %d", int(q))
	}
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// SleepInterval is one stored sleep session. Start and End are naive
// wall-clock values carried in the UTC location.
type SleepInterval struct {
	ID        string
	UserID    int64
	Start     time.Time
	End       time.Time
	Quality   Quality
	CreatedAt time.Time
}

// DurationMinutes is the whole number of minutes between Start and End.
func (s SleepInterval) DurationMinutes() int64 {
	return int64(s.End.Sub(s.Start) / time.Minute)
}

// SleepTime is the elapsed sleep for the interval expressed as a clock value.
func (s SleepInterval) SleepTime() TimeOfDay {
	return ElapsedSleep(TimeOfDayOf(s.Start), TimeOfDayOf(s.End))
}

// Cursor models the pagination token for history listings.
type Cursor struct {
	End time.Time
	ID  string
}
