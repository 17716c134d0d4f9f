// Package store persists phone numbers and call history.
//
// Two backends implement Store: PostgresStore over a pgx pool and SQLiteStore
// over modernc.org/sqlite. Open picks one from the database URL scheme.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/autodialer/internal/types"
)

// DefaultLogLimit is the number of call logs returned when no limit is given
const DefaultLogLimit = 50

// MaxLogLimit caps a single log query
const MaxLogLimit = 1000

// NumberRecord is a stored phone number
type NumberRecord struct {
	ID      int64     `json:"id"`
	Number  string    `json:"number"`
	AddedAt time.Time `json:"added_at"`
}

// LogFilter narrows a call log query. Zero values mean no filter.
type LogFilter struct {
	PhoneNumber string
	Status      types.CallStatus
	Limit       int
}

func (f LogFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLogLimit
	case f.Limit > MaxLogLimit:
		return MaxLogLimit
	default:
		return f.Limit
	}
}

// StatsFilter narrows a statistics query to one number and/or the last Days days
type StatsFilter struct {
	PhoneNumber string
	Days        int
}

// CallStatistics aggregates stored call attempts
type CallStatistics struct {
	TotalCalls           int     `json:"total_calls"`
	SuccessfulCalls      int     `json:"successful_calls"`
	FailedCalls          int     `json:"failed_calls"`
	NoAnswerCalls        int     `json:"no_answer_calls"`
	BusyCalls            int     `json:"busy_calls"`
	CanceledCalls        int     `json:"canceled_calls"`
	InitiatedCalls       int     `json:"initiated_calls"`
	AvgDuration          float64 `json:"avg_duration"`
	TotalDuration        int     `json:"total_duration"`
	MaxDuration          int     `json:"max_duration"`
	MinDuration          int     `json:"min_duration"`
	TotalDurationMinutes float64 `json:"total_duration_minutes"`
	SuccessRate          float64 `json:"success_rate"`
	FailureRate          float64 `json:"failure_rate"`
	NoAnswerRate         float64 `json:"no_answer_rate"`
}

// finish rounds durations and derives the rates from the raw counts
func (s *CallStatistics) finish() {
	s.AvgDuration = types.Round2(s.AvgDuration)
	s.TotalDurationMinutes = types.Round2(float64(s.TotalDuration) / 60)
	s.SuccessRate = types.Percent(s.SuccessfulCalls, s.TotalCalls)
	s.FailureRate = types.Percent(s.FailedCalls, s.TotalCalls)
	s.NoAnswerRate = types.Percent(s.NoAnswerCalls, s.TotalCalls)
}

// Store is the persistence contract used by the command handlers and the
// call orchestrator. Numbers are stored in canonical form; callers normalize
// before calling.
type Store interface {
	// AddNumber inserts a number. Returns ErrDuplicate if it already exists.
	AddNumber(ctx context.Context, number string) (NumberRecord, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	// GetAllNumbers returns every stored number, newest first
	GetAllNumbers(ctx context.Context) ([]NumberRecord, error)
	// RemoveNumber deletes a number. Returns ErrNotFound if it was not stored.
	RemoveNumber(ctx context.Context, number string) error
	CountNumbers(ctx context.Context) (int, error)
	// ClearNumbers deletes every number and returns how many were removed
	ClearNumbers(ctx context.Context) (int64, error)

	// LogCallAttempt appends a call attempt and returns its ID
	LogCallAttempt(ctx context.Context, attempt types.CallAttempt) (int64, error)
	// GetCallLogs returns call attempts, newest first
	GetCallLogs(ctx context.Context, filter LogFilter) ([]types.CallAttempt, error)
	GetCallStatistics(ctx context.Context, filter StatsFilter) (CallStatistics, error)
	// ClearCallLogs deletes every call attempt and returns how many were removed
	ClearCallLogs(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store named by databaseURL and applies migrations.
// postgres:// and postgresql:// URLs use PostgresStore; sqlite:// URLs and
// bare file paths use SQLiteStore.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return ConnectPostgres(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.Contains(databaseURL, "://"):
		return nil, &Error{Op: "open", Message: fmt.Sprintf("unsupported database URL scheme in %q", databaseURL)}
	default:
		return OpenSQLite(ctx, databaseURL)
	}
}

// whereClause joins the filter conditions. placeholder renders the n-th
// bind parameter for the backend's dialect.
type whereClause struct {
	conds       []string
	args        []any
	placeholder func(n int) string
}

func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", w.placeholder(len(w.args))))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder for one more argument appended after the conditions
func (w *whereClause) next(arg any) string {
	w.args = append(w.args, arg)
	return w.placeholder(len(w.args))
}

func logWhere(f LogFilter, placeholder func(int) string) *whereClause {
	w := &whereClause{placeholder: placeholder}
	if f.PhoneNumber != "" {
		w.add("phone_number = ?", f.PhoneNumber)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	return w
}

// statsWhere builds the statistics filter. since converts the day-window
// cutoff into the backend's created_at representation.
func statsWhere(f StatsFilter, now time.Time, placeholder func(int) string, since func(time.Time) any) *whereClause {
	w := &whereClause{placeholder: placeholder}
	if f.PhoneNumber != "" {
		w.add("phone_number = ?", f.PhoneNumber)
	}
	if f.Days > 0 {
		w.add("created_at >= ?", since(now.AddDate(0, 0, -f.Days)))
	}
	return w
}

const statsColumns = `
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'no-answer' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'busy' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'canceled' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'initiated' THEN 1 ELSE 0 END), 0),
	COALESCE(CAST(AVG(duration) AS DOUBLE PRECISION), 0),
	COALESCE(SUM(duration), 0),
	COALESCE(MAX(duration), 0),
	COALESCE(MIN(duration), 0)`

// scanner is satisfied by both pgx.Row and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

func scanStatistics(row scanner) (CallStatistics, error) {
	var s CallStatistics
	err := row.Scan(
		&s.TotalCalls, &s.SuccessfulCalls, &s.FailedCalls, &s.NoAnswerCalls,
		&s.BusyCalls, &s.CanceledCalls, &s.InitiatedCalls,
		&s.AvgDuration, &s.TotalDuration, &s.MaxDuration, &s.MinDuration,
	)
	if err != nil {
		return CallStatistics{}, err
	}
	s.finish()
	return s, nil
}

func validateAttempt(a types.CallAttempt) error {
	if a.PhoneNumber == "" {
		return &Error{Op: "log call", Message: "phone number is required"}
	}
	if !a.Status.Valid() {
		return &Error{Op: "log call", Message: fmt.Sprintf("invalid call status %q", a.Status)}
	}
	if a.Duration < 0 {
		return &Error{Op: "log call", Message: "duration must not be negative"}
	}
	return nil
}
