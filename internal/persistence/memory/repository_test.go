package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
)

func day(d, h int) time.Time {
	return time.Date(2025, time.May, d, h, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, repo *Repository) []domain.SleepInterval {
	t.Helper()
	var stored []domain.SleepInterval
	for d := 10; d <= 14; d++ {
		in, err := repo.Insert(context.Background(), domain.SleepInterval{
			UserID: 1, Start: day(d-1, 22), End: day(d, 6), Quality: domain.QualityOK,
		})
		require.NoError(t, err)
		require.NotEmpty(t, in.ID)
		require.False(t, in.CreatedAt.IsZero())
		stored = append(stored, in)
	}
	_, err := repo.Insert(context.Background(), domain.SleepInterval{UserID: 2, Start: day(12, 1), End: day(12, 5)})
	require.NoError(t, err)
	return stored
}

func TestFindByUserAndEndBetween(t *testing.T) {
	repo := NewRepository()
	stored := seed(t, repo)

	got, err := repo.FindByUserAndEndBetween(context.Background(), 1, day(11, 6), day(13, 6))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, stored[3].ID, got[0].ID, "most recent first")
	require.Equal(t, stored[1].ID, got[2].ID)

	none, err := repo.FindByUserAndEndBetween(context.Background(), 3, day(1, 0), day(30, 0))
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestListByUserPaginates(t *testing.T) {
	repo := NewRepository()
	stored := seed(t, repo)
	ctx := context.Background()

	page, next, err := repo.ListByUser(ctx, 1, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, stored[4].ID, page[0].ID)
	require.NotNil(t, next)

	page, next, err = repo.ListByUser(ctx, 1, next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{stored[2].ID, stored[1].ID}, []string{page[0].ID, page[1].ID})

	page, next, err = repo.ListByUser(ctx, 1, next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Nil(t, next)
}

func TestRepositoryHonoursCancellation(t *testing.T) {
	repo := NewRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Insert(ctx, domain.SleepInterval{UserID: 1})
	require.ErrorIs(t, err, context.Canceled)
}
