package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jonathan/autodialer/internal/types"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS phone_numbers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		number TEXT UNIQUE NOT NULL CHECK (length(number) >= 10),
		added_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS call_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone_number TEXT NOT NULL,
		call_sid TEXT,
		status TEXT NOT NULL CHECK (status IN ('initiated', 'completed', 'failed', 'busy', 'no-answer', 'canceled', 'queued', 'ringing', 'in-progress')),
		duration INTEGER NOT NULL DEFAULT 0 CHECK (duration >= 0),
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_phone_numbers_added_at ON phone_numbers(added_at)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_phone_number ON call_logs(phone_number)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_created_at ON call_logs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_status ON call_logs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_call_logs_call_sid ON call_logs(call_sid)`,
}

// SQLiteStore keeps numbers and call logs in a local SQLite file.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, &Error{Op: "open", Message: "sqlite path is required"}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("open", err)
	}
	// one writer at a time; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes if they do not exist
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return wrap("migrate", err)
	}
	for _, stmt := range sqliteMigrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrap("migrate", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

// Close closes the database
func (s *SQLiteStore) Close() error { return s.db.Close() }

func sqlitePlaceholder(int) string { return "?" }

func millis(t time.Time) int64 { return t.UnixMilli() }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// AddNumber inserts a number, mapping a unique violation to ErrDuplicate
func (s *SQLiteStore) AddNumber(ctx context.Context, number string) (NumberRecord, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO phone_numbers (number, added_at) VALUES (?, ?)`,
		number, millis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return NumberRecord{}, ErrDuplicate
		}
		return NumberRecord{}, wrap("add number", err)
	}
	id, _ := res.LastInsertId()
	return NumberRecord{ID: id, Number: number, AddedAt: time.UnixMilli(millis(now))}, nil
}

// NumberExists reports whether number is stored
func (s *SQLiteStore) NumberExists(ctx context.Context, number string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM phone_numbers WHERE number = ?`, number).Scan(&n)
	if err != nil {
		return false, wrap("check number", err)
	}
	return n > 0, nil
}

// GetAllNumbers returns every stored number, newest first
func (s *SQLiteStore) GetAllNumbers(ctx context.Context) ([]NumberRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, number, added_at FROM phone_numbers ORDER BY added_at DESC, id DESC`,
	)
	if err != nil {
		return nil, wrap("list numbers", err)
	}
	defer rows.Close()

	var out []NumberRecord
	for rows.Next() {
		var (
			rec   NumberRecord
			added int64
		)
		if err := rows.Scan(&rec.ID, &rec.Number, &added); err != nil {
			return nil, wrap("list numbers", err)
		}
		rec.AddedAt = time.UnixMilli(added)
		out = append(out, rec)
	}
	return out, wrap("list numbers", rows.Err())
}

// RemoveNumber deletes number or returns ErrNotFound
func (s *SQLiteStore) RemoveNumber(ctx context.Context, number string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM phone_numbers WHERE number = ?`, number)
	if err != nil {
		return wrap("remove number", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNumbers returns how many numbers are stored
func (s *SQLiteStore) CountNumbers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM phone_numbers`).Scan(&n); err != nil {
		return 0, wrap("count numbers", err)
	}
	return n, nil
}

// ClearNumbers deletes every stored number
func (s *SQLiteStore) ClearNumbers(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM phone_numbers`)
	if err != nil {
		return 0, wrap("clear numbers", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LogCallAttempt appends a call attempt
func (s *SQLiteStore) LogCallAttempt(ctx context.Context, a types.CallAttempt) (int64, error) {
	if err := validateAttempt(a); err != nil {
		return 0, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO call_logs (phone_number, call_sid, status, duration, error_message, retry_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.PhoneNumber, nullable(a.ProviderCallID), string(a.Status), a.Duration,
		nullable(a.ErrorMessage), a.RetryCount, millis(a.CreatedAt),
	)
	if err != nil {
		return 0, wrap("log call", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// GetCallLogs returns call attempts matching filter, newest first
func (s *SQLiteStore) GetCallLogs(ctx context.Context, filter LogFilter) ([]types.CallAttempt, error) {
	w := logWhere(filter, sqlitePlaceholder)
	query := `SELECT id, phone_number, call_sid, status, duration, error_message, retry_count, created_at
		FROM call_logs` + w.String() + ` ORDER BY created_at DESC, id DESC LIMIT ` + w.next(filter.limit())

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, wrap("get call logs", err)
	}
	defer rows.Close()

	var out []types.CallAttempt
	for rows.Next() {
		var (
			a           types.CallAttempt
			sid, errMsg sql.NullString
			status      string
			created     int64
		)
		if err := rows.Scan(&a.ID, &a.PhoneNumber, &sid, &status, &a.Duration, &errMsg, &a.RetryCount, &created); err != nil {
			return nil, wrap("get call logs", err)
		}
		a.Status = types.CallStatus(status)
		a.ProviderCallID = sid.String
		a.ErrorMessage = errMsg.String
		a.CreatedAt = time.UnixMilli(created)
		out = append(out, a)
	}
	return out, wrap("get call logs", rows.Err())
}

// GetCallStatistics aggregates call attempts matching filter
func (s *SQLiteStore) GetCallStatistics(ctx context.Context, filter StatsFilter) (CallStatistics, error) {
	w := statsWhere(filter, s.now(), sqlitePlaceholder, func(t time.Time) any { return millis(t) })
	stats, err := scanStatistics(s.db.QueryRowContext(ctx, `SELECT`+statsColumns+` FROM call_logs`+w.String(), w.args...))
	if err != nil {
		return CallStatistics{}, wrap("get call statistics", err)
	}
	return stats, nil
}

// ClearCallLogs deletes every call attempt
func (s *SQLiteStore) ClearCallLogs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM call_logs`)
	if err != nil {
		return 0, wrap("clear call logs", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
