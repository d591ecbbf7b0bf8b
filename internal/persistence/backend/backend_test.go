package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/config"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/migrations"
)

func TestOpenBackends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		dialect migrations.Dialect
		hasDB   bool
	}{
		{name: "memory", backend: config.BackendMemory},
		{name: "sqlite", backend: config.BackendSQLite, dialect: migrations.SQLite, hasDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.StorageBackend = tt.backend
			cfg.SQLitePath = filepath.Join(t.TempDir(), "sleep.db")

			b, err := Open(context.Background(), cfg, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(b.Close)

			require.Equal(t, tt.backend, b.Name)
			require.Equal(t, tt.dialect, b.Dialect)
			require.Equal(t, tt.hasDB, b.DB != nil)
			require.Nil(t, b.Pool)

			start := time.Date(2025, 5, 14, 22, 0, 0, 0, time.UTC)
			stored, err := b.Repo.Insert(context.Background(), domain.SleepInterval{
				UserID:  1,
				Start:   start,
				End:     start.Add(8 * time.Hour),
				Quality: domain.QualityGood,
			})
			require.NoError(t, err)
			require.NotEmpty(t, stored.ID)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.StorageBackend = "cassandra"
	_, err := Open(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "unknown storage backend")
}

func TestConnectGivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", 3, zap.NewNop())
	require.Error(t, err)
}
