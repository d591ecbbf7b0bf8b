package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC)

func at(dayOffset, hour, minute int) time.Time {
	return testDate.AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func interval(id string, start, end time.Time) SleepInterval {
	return SleepInterval{ID: id, UserID: 1, Start: start, End: end, Quality: QualityGood}
}

type stubFinder struct {
	intervals []SleepInterval
	err       error
	from, to  time.Time
	calls     int
}

func (f *stubFinder) FindByUserAndEndBetween(_ context.Context, _ int64, from, to time.Time) ([]SleepInterval, error) {
	f.calls++
	f.from, f.to = from, to
	return f.intervals, f.err
}

func TestOverlapValidator(t *testing.T) {
	night := interval("existing", at(0, 22, 0), at(1, 6, 0))

	cases := []struct {
		name      string
		candidate SleepInterval
		existing  []SleepInterval
		conflict  bool
	}{
		{"no existing logs", interval("", at(0, 22, 0), at(1, 6, 0)), nil, false},
		{"completely before", interval("", at(0, 20, 0), at(0, 21, 0)), []SleepInterval{night}, false},
		{"completely after", interval("", at(1, 7, 0), at(1, 8, 0)), []SleepInterval{night}, false},
		{"contained within existing", interval("", at(0, 23, 0), at(1, 1, 0)), []SleepInterval{night}, true},
		{"existing contained within candidate", interval("", at(0, 22, 0), at(1, 6, 0)), []SleepInterval{interval("other", at(0, 23, 0), at(1, 1, 0))}, true},
		{"overlaps start of existing", interval("", at(0, 21, 0), at(0, 22, 30)), []SleepInterval{night}, true},
		{"overlaps end of existing", interval("", at(1, 5, 30), at(1, 7, 0)), []SleepInterval{night}, true},
		{"starts at existing end", interval("", at(0, 22, 0), at(1, 1, 0)), []SleepInterval{interval("other", at(0, 20, 0), at(0, 22, 0))}, true},
		{"ends at existing start", interval("", at(0, 20, 0), at(0, 22, 0)), []SleepInterval{interval("other", at(0, 22, 0), at(1, 1, 0))}, true},
		{"identical with different ids", interval("new", at(0, 22, 0), at(1, 6, 0)), []SleepInterval{night}, true},
		{"same id is ignored", interval("existing", at(0, 22, 0), at(1, 6, 0)), []SleepInterval{night}, false},
		{
			"same id ignored but other log overlaps",
			interval("existing", at(0, 22, 0), at(1, 1, 0)),
			[]SleepInterval{night, interval("other", at(0, 23, 0), at(1, 0, 30))},
			true,
		},
		{
			"one of several existing overlaps",
			interval("", at(0, 12, 0), at(0, 13, 0)),
			[]SleepInterval{night, interval("nap", at(0, 12, 30), at(0, 14, 0))},
			true,
		},
		{"one minute gap", interval("", at(0, 20, 0), at(0, 21, 59)), []SleepInterval{night}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator := NewOverlapValidator(&stubFinder{intervals: tc.existing})
			err := validator.Validate(context.Background(), tc.candidate)
			if !tc.conflict {
				require.NoError(t, err)
				return
			}
			var conflict *SleepLogAlreadyExistsError
			require.ErrorAs(t, err, &conflict)
			require.Equal(t, tc.candidate.Start, conflict.CandidateStart)
			require.Equal(t, tc.candidate.End, conflict.CandidateEnd)
		})
	}
}

func TestOverlapValidatorReportsExistingBounds(t *testing.T) {
	existing := interval("existing", at(-1, 22, 0), at(0, 6, 0))
	validator := NewOverlapValidator(&stubFinder{intervals: []SleepInterval{existing}})

	err := validator.Validate(context.Background(), interval("", at(0, 5, 0), at(0, 7, 0)))

	var conflict *SleepLogAlreadyExistsError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, existing.Start, conflict.ExistingStart)
	require.Equal(t, existing.End, conflict.ExistingEnd)
	require.Equal(t, "You already have a log between 2025-05-14T22:00 and 2025-05-15T06:00", err.Error())
}

func TestOverlapValidatorQueryWindow(t *testing.T) {
	finder := &stubFinder{}
	validator := NewOverlapValidator(finder)

	require.NoError(t, validator.Validate(context.Background(), interval("", at(-1, 23, 0), at(0, 7, 0))))
	require.Equal(t, 1, finder.calls)
	require.Equal(t, time.Date(2025, time.May, 14, 0, 0, 0, 0, time.UTC), finder.from)
	require.Equal(t, time.Date(2025, time.May, 16, 23, 59, 59, 999999999, time.UTC), finder.to)
}

func TestOverlapValidatorWrapsStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	validator := NewOverlapValidator(&stubFinder{err: boom})

	err := validator.Validate(context.Background(), interval("", at(0, 1, 0), at(0, 7, 0)))

	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	require.ErrorIs(t, err, boom)
}

func TestOverlapsIsSymmetric(t *testing.T) {
	points := []time.Time{at(0, 20, 0), at(0, 21, 0), at(0, 22, 0), at(0, 23, 0), at(1, 1, 0), at(1, 6, 0)}
	for i := range points {
		for j := i; j < len(points); j++ {
			for k := range points {
				for l := k; l < len(points); l++ {
					a := interval("a", points[i], points[j])
					b := interval("b", points[k], points[l])
					require.Equal(t, Overlaps(a, b), Overlaps(b, a), "a=%v b=%v", a, b)
				}
			}
		}
	}
}

func TestOverlapsBoundaries(t *testing.T) {
	a := interval("a", at(0, 20, 0), at(0, 22, 0))
	require.True(t, Overlaps(a, interval("b", at(0, 22, 0), at(1, 6, 0))))
	require.False(t, Overlaps(a, interval("b", at(0, 22, 0).Add(time.Second), at(1, 6, 0))))
}
