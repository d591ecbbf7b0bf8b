package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{End: time.Date(2025, 5, 15, 6, 0, 0, 0, time.UTC), ID: "0f4c2f3e-3c1d-4b8e-9d0e-5b6f1f2a7c11"}

	token := EncodeCursor(in)
	require.NotEmpty(t, token)

	out, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	c, err := DecodeCursor("   ")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = DecodeCursor("!!!")
	require.Error(t, err)

	_, err = DecodeCursor(EncodeCursor(&domain.Cursor{ID: "x"})[:4])
	require.Error(t, err)
}

func TestNextCursor(t *testing.T) {
	page := []domain.SleepInterval{
		{ID: "a", End: time.Date(2025, 5, 15, 6, 0, 0, 0, time.UTC)},
		{ID: "b", End: time.Date(2025, 5, 14, 6, 0, 0, 0, time.UTC)},
	}
	require.Nil(t, NextCursor(page, 3))
	require.Equal(t, &domain.Cursor{ID: "b", End: page[1].End}, NextCursor(page, 2))
}
