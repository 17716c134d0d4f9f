package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/autodialer/internal/types"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS phone_numbers (
		id BIGSERIAL PRIMARY KEY,
		number TEXT UNIQUE NOT NULL CHECK (length(number) >= 10),
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS call_logs (
		id BIGSERIAL PRIMARY KEY,
		phone_number TEXT NOT NULL,
		call_sid TEXT,
		status TEXT NOT NULL CHECK (status IN ('initiated', 'completed', 'failed', 'busy', 'no-answer', 'canceled', 'queued', 'ringing', 'in-progress')),
		duration INTEGER NOT NULL DEFAULT 0 CHECK (duration >= 0),
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_phone_numbers_added_at ON phone_numbers(added_at)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_phone_number ON call_logs(phone_number)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_created_at ON call_logs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_status ON call_logs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_call_sid ON call_logs(call_sid)`,
}

// PostgresStore wraps a PostgreSQL connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// ConnectPostgres establishes a connection pool and applies migrations
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresMigrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrap("migrate", err)
		}
	}
	return nil
}

// Ping verifies the pool can reach the database
func (s *PostgresStore) Ping(ctx context.Context) error {
	return wrap("ping", s.pool.Ping(ctx))
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func pgPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// AddNumber inserts a number, mapping a unique violation to ErrDuplicate
func (s *PostgresStore) AddNumber(ctx context.Context, number string) (NumberRecord, error) {
	rec := NumberRecord{Number: number}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO phone_numbers (number) VALUES ($1) RETURNING id, added_at`,
		number,
	).Scan(&rec.ID, &rec.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return NumberRecord{}, ErrDuplicate
		}
		return NumberRecord{}, wrap("add number", err)
	}
	return rec, nil
}

// NumberExists reports whether number is stored
func (s *PostgresStore) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM phone_numbers WHERE number = $1)`,
		number,
	).Scan(&exists)
	if err != nil {
		return false, wrap("check number", err)
	}
	return exists, nil
}

// GetAllNumbers returns every stored number, newest first
func (s *PostgresStore) GetAllNumbers(ctx context.Context) ([]NumberRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, number, added_at FROM phone_numbers ORDER BY added_at DESC, id DESC`,
	)
	if err != nil {
		return nil, wrap("list numbers", err)
	}
	defer rows.Close()

	var out []NumberRecord
	for rows.Next() {
		var rec NumberRecord
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.AddedAt); err != nil {
			return nil, wrap("list numbers", err)
		}
		out = append(out, rec)
	}
	return out, wrap("list numbers", rows.Err())
}

// RemoveNumber deletes number or returns ErrNotFound
func (s *PostgresStore) RemoveNumber(ctx context.Context, number string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM phone_numbers WHERE number = $1`, number)
	if err != nil {
		return wrap("remove number", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNumbers returns how many numbers are stored
func (s *PostgresStore) CountNumbers(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM phone_numbers`).Scan(&n); err != nil {
		return 0, wrap("count numbers", err)
	}
	return n, nil
}

// ClearNumbers deletes every stored number
func (s *PostgresStore) ClearNumbers(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM phone_numbers`)
	if err != nil {
		return 0, wrap("clear numbers", err)
	}
	return tag.RowsAffected(), nil
}

// LogCallAttempt appends a call attempt
func (s *PostgresStore) LogCallAttempt(ctx context.Context, a types.CallAttempt) (int64, error) {
	if err := validateAttempt(a); err != nil {
		return 0, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO call_logs (phone_number, call_sid, status, duration, error_message, retry_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.PhoneNumber, nullable(a.ProviderCallID), string(a.Status), a.Duration,
		nullable(a.ErrorMessage), a.RetryCount, a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, wrap("log call", err)
	}
	return id, nil
}

// GetCallLogs returns call attempts matching filter, newest first
func (s *PostgresStore) GetCallLogs(ctx context.Context, filter LogFilter) ([]types.CallAttempt, error) {
	w := logWhere(filter, pgPlaceholder)
	query := `SELECT id, phone_number, call_sid, status, duration, error_message, retry_count, created_at
		FROM call_logs` + w.String() + ` ORDER BY created_at DESC, id DESC LIMIT ` + w.next(filter.limit())

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, wrap("get call logs", err)
	}
	defer rows.Close()

	var out []types.CallAttempt
	for rows.Next() {
		var (
			a           types.CallAttempt
			sid, errMsg *string
			status      string
		)
		if err := rows.Scan(&a.ID, &a.PhoneNumber, &sid, &status, &a.Duration, &errMsg, &a.RetryCount, &a.CreatedAt); err != nil {
			return nil, wrap("get call logs", err)
		}
		a.Status = types.CallStatus(status)
		a.ProviderCallID = deref(sid)
		a.ErrorMessage = deref(errMsg)
		out = append(out, a)
	}
	return out, wrap("get call logs", rows.Err())
}

// GetCallStatistics aggregates call attempts matching filter
func (s *PostgresStore) GetCallStatistics(ctx context.Context, filter StatsFilter) (CallStatistics, error) {
	w := statsWhere(filter, s.now(), pgPlaceholder, func(t time.Time) any { return t })
	stats, err := scanStatistics(s.pool.QueryRow(ctx, `SELECT`+statsColumns+` FROM call_logs`+w.String(), w.args...))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return CallStatistics{}, wrap("get call statistics", err)
	}
	return stats, nil
}

// ClearCallLogs deletes every call attempt
func (s *PostgresStore) ClearCallLogs(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM call_logs`)
	if err != nil {
		return 0, wrap("clear call logs", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
