// Package domain defines the business logic for the sleep-log service.
package domain

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/observability"
)

var (
	// ErrInvalidQuality is returned when a quality value is outside BAD, OK and GOOD.
	ErrInvalidQuality = errors.New("sleepQuality must be one of BAD, OK, GOOD")
)

// farFuture bounds the lookup for sessions that have not ended yet.
var farFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// SleepLogRepository captures persistence operations.
type SleepLogRepository interface {
	IntervalFinder
	Insert(ctx context.Context, interval SleepInterval) (SleepInterval, error)
	ListByUser(ctx context.Context, userID int64, cursor *Cursor, limit int) ([]SleepInterval, *Cursor, error)
}

// AverageCache memoises trailing averages per user, window size and day.
type AverageCache interface {
	Get(userID int64, days int, day time.Time) (*AggregateResult, bool)
	Put(userID int64, days int, day time.Time, result *AggregateResult)
	Invalidate(userID int64)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger used for storage faults and conflicts.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAverageCache enables caching of trailing averages.
func WithAverageCache(cache AverageCache) Option {
	return func(s *Service) { s.cache = cache }
}

// Service orchestrates sleep-log workflows.
type Service struct {
	repo       SleepLogRepository
	validator  *OverlapValidator
	aggregator *WindowAggregator
	clock      Clock
	cache      AverageCache
	locks      *userLocks
	logger     *zap.Logger
}

// NewService constructs a Service.
func NewService(repo SleepLogRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		clock:  SystemClock{},
		locks:  newUserLocks(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewOverlapValidator(repo)
	s.aggregator = NewWindowAggregator(repo, s.clock)
	return s
}

// RecordSleepInput captures the payload from the API layer. A zero Date
// means today.
type RecordSleepInput struct {
	UserID  int64
	Date    time.Time
	Start   *TimeOfDay
	End     *TimeOfDay
	Quality *Quality
}

// RecordSleep normalizes, validates and stores a sleep session. Writes for
// the same user are serialized so the overlap check sees every earlier
// insert.
func (s *Service) RecordSleep(ctx context.Context, input RecordSleepInput) (*SleepInterval, error) {
	date := input.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	start, end, err := NormalizeInterval(date, input.Start, input.End)
	if err != nil {
		return nil, err
	}
	if input.Quality == nil {
		return nil, &MissingFieldError{Field: "sleepQuality"}
	}
	if !input.Quality.Valid() {
		return nil, ErrInvalidQuality
	}

	candidate := SleepInterval{
		UserID:  input.UserID,
		Start:   start,
		End:     end,
		Quality: *input.Quality,
	}

	unlock := s.locks.lock(input.UserID)
	defer unlock()

	if err := s.validator.Validate(ctx, candidate); err != nil {
		return nil, s.reject(candidate, err)
	}

	stored, err := s.repo.Insert(ctx, candidate)
	if err != nil {
		return nil, s.reject(candidate, storageError("insert", err))
	}

	if s.cache != nil {
		s.cache.Invalidate(input.UserID)
	}
	observability.RecordSleepLogged(stored.Quality.String(), stored.DurationMinutes())
	s.logger.Info("sleep log recorded",
		zap.String("log_id", stored.ID),
		zap.Int64("user_id", stored.UserID),
		zap.Time("sleep_start", stored.Start),
		zap.Time("sleep_end", stored.End),
	)
	return &stored, nil
}

func (s *Service) reject(candidate SleepInterval, err error) error {
	var conflict *SleepLogAlreadyExistsError
	if errors.As(err, &conflict) {
		observability.RecordSleepConflict()
		s.logger.Info("sleep log rejected",
			zap.Int64("user_id", candidate.UserID),
			zap.Error(conflict),
		)
		return conflict
	}
	s.logger.Error("sleep log storage failure", zap.Int64("user_id", candidate.UserID), zap.Error(err))
	return err
}

// GetMostRecentSleep returns the latest session that ended today, or nil.
func (s *Service) GetMostRecentSleep(ctx context.Context, userID int64) (*SleepInterval, error) {
	now := s.clock.Now()
	intervals, err := s.repo.FindByUserAndEndBetween(ctx, userID, StartOfDay(now), now)
	if err != nil {
		err = storageError("find recent", err)
		s.logger.Error("most recent sleep lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	if len(intervals) == 0 {
		return nil, nil
	}
	latest := intervals[0]
	return &latest, nil
}

// GetTrailingAverage aggregates the last days days of sleep. A nil result
// without error means nothing was recorded in the window. A negative days
// puts the window start after now, which yields nil.
//
// A result is only cached while no stored session of the user ends after
// now: such a session joins the window once its end passes, without an
// insert to invalidate the entry.
func (s *Service) GetTrailingAverage(ctx context.Context, userID int64, days int) (*AggregateResult, error) {
	now := s.clock.Now()
	today := StartOfDay(now)
	if s.cache != nil {
		if cached, ok := s.cache.Get(userID, days, today); ok {
			observability.RecordAggregation(true)
			return cached, nil
		}
		// Holding the user's write lock keeps an insert from landing between
		// the read and the Put below.
		unlock := s.locks.lock(userID)
		defer unlock()
	}

	result, err := s.aggregator.Aggregate(ctx, userID, days)
	if err != nil {
		s.logger.Error("trailing average failed", zap.Int64("user_id", userID), zap.Int("days", days), zap.Error(err))
		return nil, err
	}
	observability.RecordAggregation(false)

	if s.cache != nil && s.settled(ctx, userID, now) {
		s.cache.Put(userID, days, today, result)
	}
	return result, nil
}

// settled reports whether every stored session of the user ended by now.
// Lookup failures count as unsettled.
func (s *Service) settled(ctx context.Context, userID int64, now time.Time) bool {
	pending, err := s.repo.FindByUserAndEndBetween(ctx, userID, now.Add(time.Nanosecond), farFuture)
	if err != nil {
		s.logger.Warn("pending sleep lookup failed, skipping average cache", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return len(pending) == 0
}

// ListSleepHistory pages through every stored session, most recent first.
func (s *Service) ListSleepHistory(ctx context.Context, userID int64, cursor *Cursor, limit int) ([]SleepInterval, *Cursor, error) {
	items, next, err := s.repo.ListByUser(ctx, userID, cursor, limit)
	if err != nil {
		err = storageError("list", err)
		s.logger.Error("sleep history lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, nil, err
	}
	return items, next, nil
}
