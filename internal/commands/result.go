// Package commands executes validated commands. Each action maps to one
// handler and every handler returns a Result: a success or error status plus
// an action-specific payload.
package commands

import (
	"encoding/json"
	"maps"

	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

// Status is the outcome of a command execution
type Status string

// Status constants
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Payload is the action-specific part of a Result. The concrete types are
// BulkCallPayload, CallPayload, NumberPayload, LogsPayload and StatisticsPayload.
type Payload interface {
	payload()
}

// BulkCallPayload is the call_all payload
type BulkCallPayload struct {
	JobID        string                `json:"job_id"`
	TotalNumbers int                   `json:"total_numbers"`
	Statistics   types.BatchStatistics `json:"statistics"`
	Results      []types.CallResult    `json:"results"`
}

// CallPayload is the call_specific payload
type CallPayload struct {
	PhoneNumber string `json:"phone_number"`
	CallID      string `json:"call_sid,omitempty"`
	RetryCount  int    `json:"retry_count"`
	ErrorCode   string `json:"error_code,omitempty"`
}

// NumberPayload is the add_number and remove_number payload
type NumberPayload struct {
	PhoneNumber string `json:"phone_number"`
}

// LogFilters echoes the filters applied to a log query
type LogFilters struct {
	Limit       int    `json:"limit"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Status      string `json:"status,omitempty"`
}

// LogsPayload is the view_logs payload
type LogsPayload struct {
	Logs    []types.CallAttempt `json:"call_logs"`
	Count   int                 `json:"count"`
	Filters LogFilters          `json:"filters"`
}

// StatsFilters echoes the filters applied to a statistics query
type StatsFilters struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Days        int    `json:"days,omitempty"`
}

// StatisticsPayload is the get_statistics payload
type StatisticsPayload struct {
	Statistics store.CallStatistics `json:"statistics"`
	Filters    StatsFilters         `json:"filters"`
}

func (BulkCallPayload) payload()   {}
func (CallPayload) payload()       {}
func (NumberPayload) payload()     {}
func (LogsPayload) payload()       {}
func (StatisticsPayload) payload() {}

// Result is the envelope every handler returns. It marshals to a flat JSON
// object: the common fields plus the payload's fields.
type Result struct {
	Status     Status
	Action     types.Action
	Message    string
	Error      string
	Suggestion string
	Payload    Payload
}

// Succeeded reports whether the command succeeded
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// PhoneNumber returns the number the result refers to, if any
func (r Result) PhoneNumber() string {
	switch p := r.Payload.(type) {
	case CallPayload:
		return p.PhoneNumber
	case NumberPayload:
		return p.PhoneNumber
	}
	return ""
}

type resultHeader struct {
	Status     Status       `json:"status"`
	Action     types.Action `json:"action"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// MarshalJSON flattens the payload into the envelope
func (r Result) MarshalJSON() ([]byte, error) {
	header := resultHeader{
		Status:     r.Status,
		Action:     r.Action,
		Message:    r.Message,
		Error:      r.Error,
		Suggestion: r.Suggestion,
	}
	if r.Payload == nil {
		return json.Marshal(header)
	}

	out := map[string]any{}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}

	head := map[string]any{}
	body, err = json.Marshal(header)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, err
	}
	maps.Copy(out, head)
	return json.Marshal(out)
}

func success(action types.Action, message string, p Payload) Result {
	return Result{Status: StatusSuccess, Action: action, Message: message, Payload: p}
}

func failure(action types.Action, errMsg string, p Payload) Result {
	return Result{Status: StatusError, Action: action, Error: errMsg, Payload: p}
}
