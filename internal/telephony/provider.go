// Package telephony wraps the outbound-call provider: placing calls, polling
// their status and probing account connectivity. Provider failures carry the
// provider's error code so callers can decide whether to retry.
package telephony

import (
	"context"
	"strings"
	"time"

	"github.com/jonathan/autodialer/internal/types"
)

// DefaultCallTimeout is how long the provider lets a call ring
const DefaultCallTimeout = 30 * time.Second

// CallRequest describes one outbound call
type CallRequest struct {
	To      string
	Message string
	// RingTimeout is how long the callee's phone rings before giving up
	RingTimeout time.Duration
}

// CallInfo is the provider's view of a placed call
type CallInfo struct {
	ID        string
	Status    types.CallStatus
	RawStatus string
	Duration  int
	StartTime string
	EndTime   string
}

// AccountInfo is the provider's view of the configured account
type AccountInfo struct {
	Status       string
	FriendlyName string
}

// Provider is the telephony collaborator. Implementations must bound each
// request with their own timeout.
type Provider interface {
	// CreateCall places a call and returns the provider's call ID
	CreateCall(ctx context.Context, req CallRequest) (string, error)
	// FetchCall returns the current state of a call
	FetchCall(ctx context.Context, callID string) (CallInfo, error)
	// FetchAccount returns the account status, used as a connectivity probe
	FetchAccount(ctx context.Context) (AccountInfo, error)
}

// MapStatus converts a provider call status into a stored CallStatus.
// "answered" counts as completed and anything unrecognized as failed.
func MapStatus(raw string) types.CallStatus {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "completed", "answered":
		return types.CallStatusCompleted
	case "busy", "no-answer", "failed", "canceled", "queued", "ringing", "in-progress", "initiated":
		return types.CallStatus(s)
	default:
		return types.CallStatusFailed
	}
}
