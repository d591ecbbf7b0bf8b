package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/events"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence"
)

// SQLSTATE raised by the sleep_logs_no_overlap exclusion constraint.
const exclusionViolation = "23P01"

// Repository provides Postgres-backed persistence for sleep logs and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists the interval and records its outbox event inside a single transaction.
func (r *Repository) Insert(ctx context.Context, interval domain.SleepInterval) (stored domain.SleepInterval, err error) {
	interval.ID = uuid.NewString()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.SleepInterval{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertLog = `INSERT INTO sleep_logs (log_id, user_id, sleep_start, sleep_end, sleep_duration_min, sleep_quality)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`

	err = tx.QueryRow(ctx, insertLog,
		interval.ID,
		interval.UserID,
		interval.Start,
		interval.End,
		interval.DurationMinutes(),
		interval.Quality.String(),
	).Scan(&interval.CreatedAt)
	if err != nil {
		return domain.SleepInterval{}, r.translate(ctx, interval, err)
	}

	if err = insertOutbox(ctx, tx, interval, events.SleepLogRecordedType, events.SleepLogRecorded{
		LogID:        interval.ID,
		UserID:       interval.UserID,
		SleepStart:   interval.Start.Format(events.LocalDateTimeLayout),
		SleepEnd:     interval.End.Format(events.LocalDateTimeLayout),
		SleepQuality: interval.Quality.String(),
		DurationMin:  interval.DurationMinutes(),
		RecordedAt:   interval.CreatedAt.UTC(),
	}); err != nil {
		return domain.SleepInterval{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.SleepInterval{}, err
	}
	interval.CreatedAt = interval.CreatedAt.UTC()
	return interval, nil
}

// translate maps an exclusion-constraint violation onto the domain
// conflict, looking up the stored interval that caused it.
func (r *Repository) translate(ctx context.Context, candidate domain.SleepInterval, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != exclusionViolation {
		return err
	}

	conflict := &domain.SleepLogAlreadyExistsError{
		CandidateStart: candidate.Start,
		CandidateEnd:   candidate.End,
	}

	const query = `SELECT sleep_start, sleep_end FROM sleep_logs
        WHERE user_id = $1 AND tsrange(sleep_start, sleep_end, '[]') && tsrange($2, $3, '[]')
        ORDER BY sleep_end DESC LIMIT 1`
	if lookupErr := r.pool.QueryRow(ctx, query, candidate.UserID, candidate.Start, candidate.End).
		Scan(&conflict.ExistingStart, &conflict.ExistingEnd); lookupErr != nil {
		return fmt.Errorf("%w (overlap lookup: %v)", conflict, lookupErr)
	}
	return conflict
}

func insertOutbox(ctx context.Context, tx pgx.Tx, interval domain.SleepInterval, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"sleep_log",
		interval.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(interval),
		body,
		fmt.Sprintf("%s:%s", interval.ID, eventType),
	)
	return err
}

const selectColumns = `SELECT log_id, user_id, sleep_start, sleep_end, sleep_quality, created_at FROM sleep_logs`

// FindByUserAndEndBetween returns a user's logs whose end lies in [from, to], latest first.
func (r *Repository) FindByUserAndEndBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.SleepInterval, error) {
	rows, err := r.pool.Query(ctx, selectColumns+`
        WHERE user_id=$1 AND sleep_end BETWEEN $2 AND $3
        ORDER BY sleep_end DESC, log_id DESC`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows, 0)
}

// ListByUser returns logs for a user ordered by end time, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, cursor *domain.Cursor, limit int) ([]domain.SleepInterval, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := selectColumns + ` WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (sleep_end, log_id) < ($3, $4)`
		args = append(args, cursor.End, cursor.ID)
	}
	query += ` ORDER BY sleep_end DESC, log_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results, err := scanIntervals(rows, limit)
	if err != nil {
		return nil, nil, err
	}
	return results, persistence.NextCursor(results, limit), nil
}

func scanIntervals(rows pgx.Rows, capacity int) ([]domain.SleepInterval, error) {
	results := make([]domain.SleepInterval, 0, capacity)
	for rows.Next() {
		var (
			in      domain.SleepInterval
			id      uuid.UUID
			quality string
		)
		if err := rows.Scan(&id, &in.UserID, &in.Start, &in.End, &quality, &in.CreatedAt); err != nil {
			return nil, err
		}
		q, err := domain.ParseQuality(quality)
		if err != nil {
			return nil, err
		}
		in.ID = id.String()
		in.Quality = q
		in.CreatedAt = in.CreatedAt.UTC()
		results = append(results, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.SleepInterval) string
}

var eventCatalog = map[string]EventMetadata{
	events.SleepLogRecordedType: {
		Topic:         "sleep_log_events",
		SchemaSubject: "sleep_log_events-value",
		PartitionKeyFn: func(in domain.SleepInterval) string {
			return strconv.FormatInt(in.UserID, 10)
		},
	},
}
