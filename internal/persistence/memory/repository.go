// Package memory keeps sleep logs in process memory for local development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence"
)

// Repository stores sleep logs per user, ordered by end time descending.
type Repository struct {
	mu     sync.RWMutex
	byUser map[int64][]domain.SleepInterval
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{byUser: make(map[int64][]domain.SleepInterval)}
}

// Insert implements domain.SleepLogRepository.
func (r *Repository) Insert(ctx context.Context, interval domain.SleepInterval) (domain.SleepInterval, error) {
	if err := ctx.Err(); err != nil {
		return domain.SleepInterval{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	interval.ID = uuid.NewString()
	interval.CreatedAt = time.Now().UTC()

	logs := append(r.byUser[interval.UserID], interval)
	sort.SliceStable(logs, func(i, j int) bool { return less(logs[j], logs[i]) })
	r.byUser[interval.UserID] = logs
	return interval, nil
}

// FindByUserAndEndBetween implements domain.IntervalFinder. Both bounds are
// inclusive.
func (r *Repository) FindByUserAndEndBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.SleepInterval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SleepInterval, 0)
	for _, in := range r.byUser[userID] {
		if in.End.Before(from) || in.End.After(to) {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// ListByUser implements domain.SleepLogRepository.
func (r *Repository) ListByUser(ctx context.Context, userID int64, cursor *domain.Cursor, limit int) ([]domain.SleepInterval, *domain.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SleepInterval, 0, limit)
	for _, in := range r.byUser[userID] {
		if len(out) == limit {
			break
		}
		if cursor != nil && !less(in, domain.SleepInterval{End: cursor.End, ID: cursor.ID}) {
			continue
		}
		out = append(out, in)
	}
	return out, persistence.NextCursor(out, limit), nil
}

// less orders by (End, ID) ascending.
func less(a, b domain.SleepInterval) bool {
	if a.End.Equal(b.End) {
		return a.ID < b.ID
	}
	return a.End.Before(b.End)
}
