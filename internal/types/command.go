// Package types provides type definitions for structured data used throughout the autodialer system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Action identifies what a user command asks the system to do
type Action string

// Action constants. Unknown is used whenever no action could be determined.
const (
	ActionCallAll       Action = "call_all"
	ActionCallSpecific  Action = "call_specific"
	ActionAddNumber     Action = "add_number"
	ActionRemoveNumber  Action = "remove_number"
	ActionViewLogs      Action = "view_logs"
	ActionGetStatistics Action = "get_statistics"
	ActionUnknown       Action = "unknown"
)

// Actions lists the recognized actions in priority order. Parsers that
// break ties by first match rely on this order.
var Actions = []Action{
	ActionCallAll,
	ActionCallSpecific,
	ActionAddNumber,
	ActionRemoveNumber,
	ActionViewLogs,
	ActionGetStatistics,
}

// ParseAction maps a free-form action name onto the fixed set, returning
// ActionUnknown for anything unrecognized.
func ParseAction(s string) Action {
	for _, a := range Actions {
		if string(a) == s {
			return a
		}
	}
	return ActionUnknown
}

// RequiresPhoneNumber reports whether the action operates on a single phone number
func (a Action) RequiresPhoneNumber() bool {
	switch a {
	case ActionCallSpecific, ActionAddNumber, ActionRemoveNumber:
		return true
	default:
		return false
	}
}

// ProcessingMethod records which parser (or fusion rule) produced a result
type ProcessingMethod string

// ProcessingMethod constants
const (
	MethodStructured        ProcessingMethod = "structured"
	MethodAI                ProcessingMethod = "ai"
	MethodAIFallback        ProcessingMethod = "ai_fallback"
	MethodValidation        ProcessingMethod = "validation"
	MethodStructuredOnly    ProcessingMethod = "structured_only"
	MethodAIPrimary         ProcessingMethod = "ai_primary"
	MethodStructuredPrimary ProcessingMethod = "structured_primary"
	MethodCombined          ProcessingMethod = "combined"
	MethodAIWithBackup      ProcessingMethod = "ai_with_backup"
)

// Well-known parameter keys
const (
	ParamPhoneNumber      = "phone_number"
	ParamPhoneNumberError = "phone_number_error"
	ParamAllPhoneNumbers  = "all_phone_numbers"
	ParamMessage          = "message"
	ParamDelay            = "delay"
	ParamLimit            = "limit"
	ParamStatus           = "status"
	ParamDays             = "days"
)

// Parameters holds the string-keyed parameters extracted from a command
type Parameters map[string]any

// GetString returns the parameter as a string, or "" when absent or not a string
func (p Parameters) GetString(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Has reports whether the key is present
func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// GetInt returns the parameter as an int. JSON numbers arrive as float64 and
// numeric strings are accepted. ok is false when absent or not numeric.
func (p Parameters) GetInt(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	maps.Copy(out, p)
	return out
}

// Merge returns base overlaid with over; over wins on key collisions
func Merge(base, over Parameters) Parameters {
	out := base.Clone()
	maps.Copy(out, over)
	return out
}

// ParseResult is the output of a single parser
type ParseResult struct {
	Action           Action           `json:"action"`
	Parameters       Parameters       `json:"parameters"`
	Confidence       float64          `json:"confidence"`
	Explanation      string           `json:"explanation"`
	ProcessingMethod ProcessingMethod `json:"processing_method"`
	Error            string           `json:"error,omitempty"`
	BackupAction     Action           `json:"backup_action,omitempty"`
}

// Clone returns a copy whose parameter map can be modified independently
func (r ParseResult) Clone() ParseResult {
	out := r
	if r.Parameters != nil {
		out.Parameters = r.Parameters.Clone()
	} else {
		out.Parameters = Parameters{}
	}
	return out
}

// ClampConfidence bounds c to [0, 1]
func ClampConfidence(c float64) float64 {
	if c != c || c < 0 { // NaN or negative
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Command is a fused, enriched parse result bound to the input it came from.
// It is built once per request and not modified afterwards.
type Command struct {
	ParseResult
	OriginalInput string    `json:"original_input"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewCommand builds a Command, copying the parameters and clamping confidence
func NewCommand(result ParseResult, input string, now time.Time) Command {
	r := result.Clone()
	r.Confidence = ClampConfidence(r.Confidence)
	if r.Action == "" {
		r.Action = ActionUnknown
	}
	return Command{
		ParseResult:   r,
		OriginalInput: input,
		Timestamp:     now,
	}
}
