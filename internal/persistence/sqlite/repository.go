// Package sqlite stores sleep logs in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence"
)

// Timestamps are stored as fixed-width text so lexical order matches
// chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Open opens the database at path. ":memory:" keeps a single connection so
// every query sees the same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// Repository provides SQLite-backed persistence for sleep logs.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert implements domain.SleepLogRepository.
func (r *Repository) Insert(ctx context.Context, interval domain.SleepInterval) (domain.SleepInterval, error) {
	interval.ID = uuid.NewString()
	interval.CreatedAt = time.Now().UTC()

	const stmt = `INSERT INTO sleep_logs (log_id, user_id, sleep_start, sleep_end, sleep_duration_min, sleep_quality, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, stmt,
		interval.ID,
		interval.UserID,
		interval.Start.Format(timeLayout),
		interval.End.Format(timeLayout),
		interval.DurationMinutes(),
		interval.Quality.String(),
		interval.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return domain.SleepInterval{}, fmt.Errorf("insert sleep log: %w", err)
	}
	return interval, nil
}

// FindByUserAndEndBetween implements domain.IntervalFinder.
func (r *Repository) FindByUserAndEndBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.SleepInterval, error) {
	const query = `SELECT log_id, user_id, sleep_start, sleep_end, sleep_quality, created_at
        FROM sleep_logs
        WHERE user_id = ? AND sleep_end BETWEEN ? AND ?
        ORDER BY sleep_end DESC, log_id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, from.Format(timeLayout), to.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query sleep logs: %w", err)
	}
	defer rows.Close()
	return scanIntervals(rows, 0)
}

// ListByUser implements domain.SleepLogRepository.
func (r *Repository) ListByUser(ctx context.Context, userID int64, cursor *domain.Cursor, limit int) ([]domain.SleepInterval, *domain.Cursor, error) {
	args := []any{userID}
	query := `SELECT log_id, user_id, sleep_start, sleep_end, sleep_quality, created_at
        FROM sleep_logs WHERE user_id = ?`

	if cursor != nil {
		query += ` AND (sleep_end, log_id) < (?, ?)`
		args = append(args, cursor.End.Format(timeLayout), cursor.ID)
	}
	query += ` ORDER BY sleep_end DESC, log_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list sleep logs: %w", err)
	}
	defer rows.Close()

	results, err := scanIntervals(rows, limit)
	if err != nil {
		return nil, nil, err
	}
	return results, persistence.NextCursor(results, limit), nil
}

func scanIntervals(rows *sql.Rows, capacity int) ([]domain.SleepInterval, error) {
	results := make([]domain.SleepInterval, 0, capacity)
	for rows.Next() {
		var (
			in                        domain.SleepInterval
			start, end, quality, made string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &start, &end, &quality, &made); err != nil {
			return nil, fmt.Errorf("scan sleep log: %w", err)
		}

		var err error
		if in.Start, err = time.ParseInLocation(timeLayout, start, time.UTC); err != nil {
			return nil, fmt.Errorf("parse sleep_start %q: %w", start, err)
		}
		if in.End, err = time.ParseInLocation(timeLayout, end, time.UTC); err != nil {
			return nil, fmt.Errorf("parse sleep_end %q: %w", end, err)
		}
		if in.CreatedAt, err = time.ParseInLocation(timeLayout, made, time.UTC); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", made, err)
		}
		if in.Quality, err = domain.ParseQuality(quality); err != nil {
			return nil, err
		}
		results = append(results, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sleep logs: %w", err)
	}
	return results, nil
}
