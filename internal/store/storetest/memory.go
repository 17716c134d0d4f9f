// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

// MemoryStore implements store.Store in memory. Setting one of the *Err
// fields makes the matching operations fail with that error.
type MemoryStore struct {
	AddErr    error
	ExistsErr error
	ListErr   error
	RemoveErr error
	LogErr    error
	QueryErr  error

	mu      sync.Mutex
	numbers []store.NumberRecord
	logs    []types.CallAttempt
	nextID  int64
}

var _ store.Store = (*MemoryStore)(nil)

// New returns an empty MemoryStore seeded with numbers
func New(numbers ...string) *MemoryStore {
	m := &MemoryStore{}
	for _, n := range numbers {
		_, _ = m.AddNumber(context.Background(), n)
	}
	return m
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// AddNumber stores number or returns store.ErrDuplicate
func (m *MemoryStore) AddNumber(_ context.Context, number string) (store.NumberRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return store.NumberRecord{}, m.AddErr
	}
	for _, rec := range m.numbers {
		if rec.Number == number {
			return store.NumberRecord{}, store.ErrDuplicate
		}
	}
	rec := store.NumberRecord{ID: m.id(), Number: number, AddedAt: time.Now()}
	m.numbers = append(m.numbers, rec)
	return rec, nil
}

// NumberExists reports whether number is stored
func (m *MemoryStore) NumberExists(_ context.Context, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	for _, rec := range m.numbers {
		if rec.Number == number {
			return true, nil
		}
	}
	return false, nil
}

// GetAllNumbers returns stored numbers, newest first
func (m *MemoryStore) GetAllNumbers(context.Context) ([]store.NumberRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]store.NumberRecord, 0, len(m.numbers))
	for i := len(m.numbers) - 1; i >= 0; i-- {
		out = append(out, m.numbers[i])
	}
	return out, nil
}

// RemoveNumber deletes number or returns store.ErrNotFound
func (m *MemoryStore) RemoveNumber(_ context.Context, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for i, rec := range m.numbers {
		if rec.Number == number {
			m.numbers = append(m.numbers[:i], m.numbers[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// CountNumbers returns how many numbers are stored
func (m *MemoryStore) CountNumbers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return 0, m.ListErr
	}
	return len(m.numbers), nil
}

// ClearNumbers removes every number
func (m *MemoryStore) ClearNumbers(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return 0, m.RemoveErr
	}
	n := int64(len(m.numbers))
	m.numbers = nil
	return n, nil
}

// LogCallAttempt appends a call attempt
func (m *MemoryStore) LogCallAttempt(_ context.Context, a types.CallAttempt) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LogErr != nil {
		return 0, m.LogErr
	}
	a.ID = m.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.logs = append(m.logs, a)
	return a.ID, nil
}

// GetCallLogs returns matching attempts, newest first
func (m *MemoryStore) GetCallLogs(_ context.Context, f store.LogFilter) ([]types.CallAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	limit := f.Limit
	if limit <= 0 {
		limit = store.DefaultLogLimit
	}
	var out []types.CallAttempt
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		a := m.logs[i]
		if f.PhoneNumber != "" && a.PhoneNumber != f.PhoneNumber {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetCallStatistics aggregates matching attempts
func (m *MemoryStore) GetCallStatistics(_ context.Context, f store.StatsFilter) (store.CallStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return store.CallStatistics{}, m.QueryErr
	}
	var s store.CallStatistics
	cutoff := time.Time{}
	if f.Days > 0 {
		cutoff = time.Now().AddDate(0, 0, -f.Days)
	}
	first := true
	for _, a := range m.logs {
		if f.PhoneNumber != "" && a.PhoneNumber != f.PhoneNumber {
			continue
		}
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		s.TotalCalls++
		switch a.Status {
		case types.CallStatusCompleted:
			s.SuccessfulCalls++
		case types.CallStatusFailed:
			s.FailedCalls++
		case types.CallStatusNoAnswer:
			s.NoAnswerCalls++
		case types.CallStatusBusy:
			s.BusyCalls++
		case types.CallStatusCanceled:
			s.CanceledCalls++
		case types.CallStatusInitiated:
			s.InitiatedCalls++
		}
		s.TotalDuration += a.Duration
		if first || a.Duration > s.MaxDuration {
			s.MaxDuration = a.Duration
		}
		if first || a.Duration < s.MinDuration {
			s.MinDuration = a.Duration
		}
		first = false
	}
	if s.TotalCalls > 0 {
		s.AvgDuration = types.Round2(float64(s.TotalDuration) / float64(s.TotalCalls))
	}
	s.TotalDurationMinutes = types.Round2(float64(s.TotalDuration) / 60)
	s.SuccessRate = types.Percent(s.SuccessfulCalls, s.TotalCalls)
	s.FailureRate = types.Percent(s.FailedCalls, s.TotalCalls)
	s.NoAnswerRate = types.Percent(s.NoAnswerCalls, s.TotalCalls)
	return s, nil
}

// ClearCallLogs removes every call attempt
func (m *MemoryStore) ClearCallLogs(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.logs))
	m.logs = nil
	return n, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

// Logs returns every logged attempt in insertion order
func (m *MemoryStore) Logs() []types.CallAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.CallAttempt(nil), m.logs...)
}
