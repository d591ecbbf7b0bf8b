// Package cache memoises trailing sleep averages between writes.
package cache

import (
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
)

type averageKey struct {
	userID int64
	days   int
	day    string
}

type averageEntry struct {
	result *domain.AggregateResult
}

// Averages is an otter-backed domain.AverageCache. Entries expire ttl after
// they are written and are dropped for a user whenever that user records
// a new sleep log.
type Averages struct {
	cache *otter.Cache[averageKey, averageEntry]
}

// NewAverages constructs a cache holding at most size entries.
func NewAverages(size int, ttl time.Duration) *Averages {
	return &Averages{
		cache: otter.Must(&otter.Options[averageKey, averageEntry]{
			MaximumSize:      size,
			ExpiryCalculator: otter.ExpiryWriting[averageKey, averageEntry](ttl),
		}),
	}
}

func keyFor(userID int64, days int, day time.Time) averageKey {
	return averageKey{userID: userID, days: days, day: day.Format("2006-01-02")}
}

// Get implements domain.AverageCache. A cached nil result means the window
// was empty.
func (a *Averages) Get(userID int64, days int, day time.Time) (*domain.AggregateResult, bool) {
	entry, ok := a.cache.GetIfPresent(keyFor(userID, days, day))
	if !ok {
		return nil, false
	}
	return entry.result, true
}

// Put implements domain.AverageCache.
func (a *Averages) Put(userID int64, days int, day time.Time, result *domain.AggregateResult) {
	a.cache.Set(keyFor(userID, days, day), averageEntry{result: result})
}

// Invalidate implements domain.AverageCache.
func (a *Averages) Invalidate(userID int64) {
	var stale []averageKey
	a.cache.All()(func(key averageKey, _ averageEntry) bool {
		if key.userID == userID {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		a.cache.Invalidate(key)
	}
}
