// Package events defines the payloads published for sleep-log changes.
package events

import "time"

// SleepLogRecordedType is the event type for a newly stored sleep log.
const SleepLogRecordedType = "sleep_log.recorded"

// SleepLogRecorded is emitted once a sleep log has been persisted.
type SleepLogRecorded struct {
	LogID        string    `json:"log_id"`
	UserID       int64     `json:"user_id"`
	SleepStart   string    `json:"sleep_start"`
	SleepEnd     string    `json:"sleep_end"`
	SleepQuality string    `json:"sleep_quality"`
	DurationMin  int64     `json:"duration_min"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// LocalDateTimeLayout renders naive wall-clock values without a zone.
const LocalDateTimeLayout = "2006-01-02T15:04:05"
