package domain

import (
	"context"
	"time"
)

// IntervalFinder is the read half of SleepLogRepository used by the
// validator and the aggregator.
type IntervalFinder interface {
	FindByUserAndEndBetween(ctx context.Context, userID int64, from, to time.Time) ([]SleepInterval, error)
}

// Overlaps reports whether two intervals share at least one instant.
// Touching endpoints count as overlap.
func Overlaps(a, b SleepInterval) bool {
	return !(a.End.Before(b.Start) || a.Start.After(b.End))
}

// OverlapValidator rejects intervals that collide with a user's history.
type OverlapValidator struct {
	finder IntervalFinder
}

// NewOverlapValidator constructs an OverlapValidator.
func NewOverlapValidator(finder IntervalFinder) *OverlapValidator {
	return &OverlapValidator{finder: finder}
}

// Validate returns *SleepLogAlreadyExistsError when candidate overlaps a
// stored interval of the same user. A stored interval with the
// candidate's own ID is ignored.
//
// Stored intervals are shorter than a day, so anything overlapping the
// candidate ends between the start of the candidate's first day and the
// end of the day after the candidate ends.
func (v *OverlapValidator) Validate(ctx context.Context, candidate SleepInterval) error {
	from := StartOfDay(candidate.Start)
	to := EndOfDay(candidate.End.AddDate(0, 0, 1))

	existing, err := v.finder.FindByUserAndEndBetween(ctx, candidate.UserID, from, to)
	if err != nil {
		return storageError("find overlapping", err)
	}

	for _, e := range existing {
		if candidate.ID != "" && e.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, e) {
			return &SleepLogAlreadyExistsError{
				ExistingStart:  e.Start,
				ExistingEnd:    e.End,
				CandidateStart: candidate.Start,
				CandidateEnd:   candidate.End,
			}
		}
	}
	return nil
}
