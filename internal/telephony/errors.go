package telephony

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error codes reported when no provider code applies
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeCanceled      = "CANCELED"
	CodeUnknown       = "PROVIDER_ERROR"
)

// terminalCodes are provider codes that are never retried, whatever the
// error text says: malformed, unreachable or non-mobile numbers
var terminalCodes = map[int]bool{
	21211: true,
	21212: true,
	21214: true,
}

// recoverableKeywords mark an error as transient when found in its text
var recoverableKeywords = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"rate limit",
	"quota",
	"busy",
	"unavailable",
}

var friendlyMessages = map[int]string{
	20003: "Authentication failed - check Twilio credentials",
	21211: "Invalid phone number format",
	21212: "Phone number not reachable",
	21214: "Invalid phone number - not a mobile number",
	21408: "Permission denied - check account permissions",
	21610: "Phone number is blocked or invalid",
	30001: "Message queue is full - try again later",
	30002: "Account suspended",
	30003: "Unreachable destination",
	30004: "Message blocked by carrier",
	30005: "Unknown destination",
	30006: "Landline or unreachable carrier",
}

// ProviderError is a failure reported by the telephony provider. Code is the
// provider's machine-readable error code, or 0 when the request never got a
// structured answer (network failures, timeouts).
type ProviderError struct {
	Code    int
	Status  int
	Message string
	Cause   error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Code != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("provider error: %s", msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CodeString returns the code as reported in call results
func (e *ProviderError) CodeString() string {
	if e.Code == 0 {
		return CodeUnknown
	}
	return strconv.Itoa(e.Code)
}

// FriendlyMessage returns a user-facing description of the failure
func (e *ProviderError) FriendlyMessage() string {
	if msg, ok := friendlyMessages[e.Code]; ok {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return "Telephony provider error"
}

// ConfigurationError reports missing or malformed provider credentials
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("telephony configuration error in %s: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("telephony configuration error: %s", e.Message)
}

// IsTerminalCode reports whether code is on the never-retry denylist
func IsTerminalCode(code int) bool {
	return terminalCodes[code]
}

// IsRecoverable reports whether err looks transient. A provider error whose
// code is on the terminal denylist is never recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && IsTerminalCode(pe.Code) {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, kw := range recoverableKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ErrorCode extracts the code reported in call results for err
func ErrorCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.CodeString()
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return CodeConfiguration
	}
	return CodeUnknown
}

// FriendlyMessage returns a user-facing description of err
func FriendlyMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.FriendlyMessage()
	}
	return err.Error()
}
