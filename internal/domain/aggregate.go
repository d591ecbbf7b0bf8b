package domain

import (
	"context"
	"encoding/json"
	"time"
)

// QualityCount tallies sessions per quality rating. Every rating is always
// present, including in its JSON form.
type QualityCount struct {
	Bad  int
	OK   int
	Good int
}

// Add increments the bucket for q.
func (c *QualityCount) Add(q Quality) {
	switch q {
	case QualityBad:
		c.Bad++
	case QualityOK:
		c.OK++
	case QualityGood:
		c.Good++
	}
}

// Total is the number of sessions counted.
func (c QualityCount) Total() int {
	return c.Bad + c.OK + c.Good
}

// MarshalJSON renders the tally keyed by quality name.
func (c QualityCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{
		QualityBad.String():  c.Bad,
		QualityOK.String():   c.OK,
		QualityGood.String(): c.Good,
	})
}

// UnmarshalJSON reads a tally keyed by quality name. Missing keys are zero.
func (c *QualityCount) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = QualityCount{
		Bad:  raw[QualityBad.String()],
		OK:   raw[QualityOK.String()],
		Good: raw[QualityGood.String()],
	}
	return nil
}

// AggregateResult summarises a user's sleep over a trailing window.
type AggregateResult struct {
	UserID       int64
	WindowStart  time.Time
	WindowEnd    time.Time
	AvgStart     TimeOfDay
	AvgEnd       TimeOfDay
	AvgSleepTime TimeOfDay
	Qualities    QualityCount
	Samples      int
}

// WindowAggregator reduces a trailing window of sleep intervals.
type WindowAggregator struct {
	finder IntervalFinder
	clock  Clock
}

// NewWindowAggregator constructs a WindowAggregator.
func NewWindowAggregator(finder IntervalFinder, clock Clock) *WindowAggregator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &WindowAggregator{finder: finder, clock: clock}
}

// Aggregate averages every interval that ended between the start of the
// day N days ago and now. It returns nil when nothing was recorded.
func (a *WindowAggregator) Aggregate(ctx context.Context, userID int64, days int) (*AggregateResult, error) {
	now := a.clock.Now()
	from := StartOfDay(now).AddDate(0, 0, -days)

	intervals, err := a.finder.FindByUserAndEndBetween(ctx, userID, from, now)
	if err != nil {
		return nil, storageError("find window", err)
	}
	return Reduce(userID, intervals, now), nil
}

// Reduce folds intervals into an AggregateResult. Clock values are averaged
// as plain seconds since midnight, so starts on both sides of midnight
// pull the mean towards midday. The reported window is always the month
// ending today.
func Reduce(userID int64, intervals []SleepInterval, today time.Time) *AggregateResult {
	if len(intervals) == 0 {
		return nil
	}

	var startSum, endSum int
	var counts QualityCount
	for _, in := range intervals {
		startSum += TimeOfDayOf(in.Start).Seconds()
		endSum += TimeOfDayOf(in.End).Seconds()
		counts.Add(in.Quality)
	}

	n := len(intervals)
	avgStart := TimeOfDay(startSum / n)
	avgEnd := TimeOfDay(endSum / n)
	day := StartOfDay(today)

	return &AggregateResult{
		UserID:       userID,
		WindowStart:  MinusMonths(day, 1),
		WindowEnd:    day,
		AvgStart:     avgStart,
		AvgEnd:       avgEnd,
		AvgSleepTime: ElapsedSleep(avgStart, avgEnd),
		Qualities:    counts,
		Samples:      n,
	}
}
