// Package types provides type definitions for structured data used throughout the autodialer system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"math"
	"time"
)

// CallStatus is the lifecycle state of a call attempt as recorded in the store
type CallStatus string

// CallStatus constants
const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
)

// CallStatuses lists every status the store accepts
var CallStatuses = []CallStatus{
	CallStatusInitiated,
	CallStatusCompleted,
	CallStatusFailed,
	CallStatusBusy,
	CallStatusNoAnswer,
	CallStatusCanceled,
	CallStatusQueued,
	CallStatusRinging,
	CallStatusInProgress,
}

// Valid reports whether s is a known call status
func (s CallStatus) Valid() bool {
	for _, known := range CallStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CallAttempt is one persisted row of call history. Rows are append-only;
// a status refresh writes a new row rather than updating an old one.
type CallAttempt struct {
	ID             int64      `json:"id"`
	PhoneNumber    string     `json:"phone_number"`
	ProviderCallID string     `json:"call_sid,omitempty"`
	Status         CallStatus `json:"status"`
	Duration       int        `json:"duration"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CallOutcome is the result status of a single make-call operation
type CallOutcome string

// CallOutcome constants
const (
	CallOutcomeSuccess CallOutcome = "success"
	CallOutcomeFailed  CallOutcome = "failed"
)

// CallResult is what the orchestrator returns for a single number
type CallResult struct {
	Status      CallOutcome `json:"status"`
	PhoneNumber string      `json:"phone_number"`
	CallID      string      `json:"call_id,omitempty"`
	Message     string      `json:"message,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorCode   string      `json:"error_code,omitempty"`
	RetryCount  int         `json:"retry_count"`
}

// Succeeded reports whether the call was placed
func (r CallResult) Succeeded() bool {
	return r.Status == CallOutcomeSuccess
}

// BatchStatistics aggregates the results of a bulk call job.
// Successful + Failed always equals Total.
type BatchStatistics struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	InProgress  int     `json:"in_progress"`
	SuccessRate float64 `json:"success_rate"`
}

// NewBatchStatistics computes statistics over a result list
func NewBatchStatistics(results []CallResult) BatchStatistics {
	stats := BatchStatistics{Total: len(results)}
	for _, r := range results {
		if r.Succeeded() {
			stats.Successful++
			if r.CallID != "" {
				stats.InProgress++
			}
		} else {
			stats.Failed++
		}
	}
	stats.SuccessRate = Percent(stats.Successful, stats.Total)
	return stats
}

// Percent returns part/total*100 rounded to two decimals, or 0 when total is 0
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(part) / float64(total) * 100)
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BulkCallJob is a transient, in-process record of one batch run
type BulkCallJob struct {
	ID                string          `json:"job_id"`
	PhoneNumbers      []string        `json:"phone_numbers"`
	Message           string          `json:"message,omitempty"`
	DelayBetweenCalls time.Duration   `json:"delay_between_calls"`
	Results           []CallResult    `json:"results"`
	Statistics        BatchStatistics `json:"statistics"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
}
