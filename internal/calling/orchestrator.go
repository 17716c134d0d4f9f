// Package calling places outbound calls through a telephony.Provider.
//
// MakeCall runs one call through validation, dialing and a bounded retry loop
// with exponential backoff. BulkCall dials a list of numbers one after another,
// isolating per-number failures so the batch always yields one result per
// input number.
package calling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonathan/autodialer/internal/metrics"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/telephony"
	"github.com/jonathan/autodialer/internal/types"
)

const tracerName = "autodialer.calling"

// Defaults for Config
const (
	DefaultMaxRetries       = 2
	DefaultBaseDelay        = time.Second
	DefaultMaxDelay         = 60 * time.Second
	DefaultMaxMessageLength = 4000
	DefaultMessage          = "Hello, this is an automated call. Thank you"
	DefaultProviderTimeout  = 30 * time.Second

	// jitter is drawn uniformly from [minJitter, maxJitter) times the delay
	minJitter = 0.1
	maxJitter = 0.3
)

// Error codes reported in call results besides provider codes
const (
	CodeUnexpected = "UNEXPECTED_ERROR"
)

// metric reason labels
const (
	reasonOK         = "ok"
	reasonValidation = "validation"
	reasonTerminal   = "terminal"
	reasonExhausted  = "exhausted"
	reasonCanceled   = "canceled"
	reasonConfig     = "configuration"
)

// Config tunes the orchestrator
type Config struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	DefaultMessage   string
	MaxMessageLength int
	// RingTimeout is how long the callee's phone rings
	RingTimeout time.Duration
	// ProviderTimeout bounds each create-call request
	ProviderTimeout time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:       DefaultMaxRetries,
		BaseDelay:        DefaultBaseDelay,
		MaxDelay:         DefaultMaxDelay,
		DefaultMessage:   DefaultMessage,
		MaxMessageLength: DefaultMaxMessageLength,
		RingTimeout:      telephony.DefaultCallTimeout,
		ProviderTimeout:  DefaultProviderTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.DefaultMessage == "" {
		c.DefaultMessage = d.DefaultMessage
	}
	if c.MaxMessageLength <= 3 {
		c.MaxMessageLength = d.MaxMessageLength
	}
	if c.RingTimeout <= 0 {
		c.RingTimeout = d.RingTimeout
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = d.ProviderTimeout
	}
	return c
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the latter case
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Orchestrator places calls and records every attempt in the store
type Orchestrator struct {
	provider  telephony.Provider
	store     store.Store
	validator *phone.Validator
	cfg       Config
	sleep     Sleeper
	rand      func() float64
	now       func() time.Time
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithSleeper replaces the sleep used for backoff and batch pacing
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithRand replaces the jitter source; it must return values in [0, 1)
func WithRand(r func() float64) Option {
	return func(o *Orchestrator) { o.rand = r }
}

// WithClock replaces the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator builds an Orchestrator. provider may be nil when telephony
// is not configured; calls then fail with a configuration error.
func NewOrchestrator(provider telephony.Provider, st store.Store, validator *phone.Validator, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:  provider,
		store:     st,
		validator: validator,
		cfg:       cfg.withDefaults(),
		sleep:     SleepContext,
		rand:      rand.Float64,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Available reports whether a telephony provider is configured
func (o *Orchestrator) Available() bool {
	return o.provider != nil
}

// Backoff returns the delay before retry number retry (0-based):
// min(base*2^retry, max) plus jitter in [0.1, 0.3) of that delay
func (o *Orchestrator) Backoff(retry int) time.Duration {
	delay := float64(o.cfg.BaseDelay) * math.Pow(2, float64(retry))
	delay = math.Min(delay, float64(o.cfg.MaxDelay))
	jitter := (minJitter + (maxJitter-minJitter)*o.rand()) * delay
	return time.Duration(delay + jitter)
}

// PrepareMessage applies the default message and truncates to the length ceiling
func (o *Orchestrator) PrepareMessage(message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = o.cfg.DefaultMessage
	}
	if r := []rune(msg); len(r) > o.cfg.MaxMessageLength {
		log.Printf("calling: message too long (%d chars), truncating", len(r))
		msg = string(r[:o.cfg.MaxMessageLength-3]) + "..."
	}
	return msg
}

// MakeCall validates number and places one call, retrying recoverable provider
// failures up to MaxRetries times. It never returns an error: every failure is
// reported in the result.
func (o *Orchestrator) MakeCall(ctx context.Context, number, message string) types.CallResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "calling.Orchestrator.MakeCall",
		trace.WithAttributes(attribute.String("phone_number", number)),
	)
	defer span.End()

	result := o.makeCall(ctx, number, message)

	span.SetAttributes(
		attribute.String("outcome", string(result.Status)),
		attribute.Int("retry_count", result.RetryCount),
	)
	if !result.Succeeded() {
		span.SetStatus(codes.Error, result.Error)
	}
	return result
}

func (o *Orchestrator) makeCall(ctx context.Context, number, message string) types.CallResult {
	normalized, err := o.validator.Normalize(number)
	if err != nil {
		reason := err.Error()
		var ve *phone.ValidationError
		if errors.As(err, &ve) {
			reason = ve.Reason
		}
		log.Printf("calling: invalid phone number %q: %s", number, reason)
		o.logAttempt(ctx, types.CallAttempt{
			PhoneNumber:  number,
			Status:       types.CallStatusFailed,
			ErrorMessage: "Invalid format: " + reason,
		})
		metrics.RecordCall(string(types.CallOutcomeFailed), reasonValidation)
		return types.CallResult{
			Status:      types.CallOutcomeFailed,
			PhoneNumber: number,
			Error:       reason,
			ErrorCode:   telephony.CodeValidation,
		}
	}

	if o.provider == nil {
		msg := "Telephony provider is not configured"
		o.logAttempt(ctx, types.CallAttempt{PhoneNumber: normalized, Status: types.CallStatusFailed, ErrorMessage: msg})
		metrics.RecordCall(string(types.CallOutcomeFailed), reasonConfig)
		return types.CallResult{
			Status:      types.CallOutcomeFailed,
			PhoneNumber: normalized,
			Error:       msg,
			ErrorCode:   telephony.CodeConfiguration,
		}
	}

	msg := o.PrepareMessage(message)
	req := telephony.CallRequest{To: normalized, Message: msg, RingTimeout: o.cfg.RingTimeout}

	for retry := 0; ; retry++ {
		log.Printf("calling: initiating call to %s (attempt %d)", normalized, retry+1)

		callID, err := o.createCall(ctx, req)
		if err == nil {
			log.Printf("calling: call initiated, sid=%s", callID)
			o.logAttempt(ctx, types.CallAttempt{
				PhoneNumber:    normalized,
				ProviderCallID: callID,
				Status:         types.CallStatusInitiated,
				RetryCount:     retry,
			})
			metrics.RecordCall(string(types.CallOutcomeSuccess), reasonOK)
			return types.CallResult{
				Status:      types.CallOutcomeSuccess,
				PhoneNumber: normalized,
				CallID:      callID,
				Message:     msg,
				RetryCount:  retry,
			}
		}

		reason := reasonExhausted
		retryable := telephony.IsRecoverable(err) && ctx.Err() == nil
		if !retryable {
			reason = reasonTerminal
		}

		if retryable && retry < o.cfg.MaxRetries {
			delay := o.Backoff(retry)
			log.Printf("calling: recoverable error, retrying in %.1fs: %v", delay.Seconds(), err)
			metrics.RecordRetry()
			if serr := o.sleep(ctx, delay); serr == nil {
				continue
			}
			err = ctx.Err()
			if err == nil {
				err = context.Canceled
			}
		}

		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return o.failCall(ctx, normalized, retry, "Call canceled", telephony.CodeCanceled, types.CallStatusCanceled, reasonCanceled)
		}
		return o.failCall(ctx, normalized, retry, telephony.FriendlyMessage(err), telephony.ErrorCode(err), types.CallStatusFailed, reason)
	}
}

func (o *Orchestrator) createCall(ctx context.Context, req telephony.CallRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()
	return o.provider.CreateCall(ctx, req)
}

func (o *Orchestrator) failCall(ctx context.Context, number string, retry int, msg, code string, status types.CallStatus, reason string) types.CallResult {
	log.Printf("calling: call to %s failed after %d retries: %s", number, retry, msg)
	o.logAttempt(ctx, types.CallAttempt{
		PhoneNumber:  number,
		Status:       status,
		ErrorMessage: msg,
		RetryCount:   retry,
	})
	metrics.RecordCall(string(types.CallOutcomeFailed), reason)
	return types.CallResult{
		Status:      types.CallOutcomeFailed,
		PhoneNumber: number,
		Error:       msg,
		ErrorCode:   code,
		RetryCount:  retry,
	}
}

// logAttempt persists a call attempt. Store failures are logged, never returned:
// a failed write must not change the outcome of a placed call.
func (o *Orchestrator) logAttempt(ctx context.Context, a types.CallAttempt) {
	if o.store == nil || a.PhoneNumber == "" {
		return
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = o.now()
	}
	// the attempt is recorded even when the caller's context was canceled
	if _, err := o.store.LogCallAttempt(context.WithoutCancel(ctx), a); err != nil {
		log.Printf("calling: failed to log call attempt for %s: %v", a.PhoneNumber, err)
	}
}

// RefreshStatus fetches the provider's view of a call and appends it to the
// call log as a new attempt row
func (o *Orchestrator) RefreshStatus(ctx context.Context, callID, number string) (telephony.CallInfo, error) {
	if callID == "" {
		return telephony.CallInfo{}, &telephony.ProviderError{Message: "call ID is required"}
	}
	if o.provider == nil {
		return telephony.CallInfo{}, &telephony.ConfigurationError{Message: "telephony provider is not configured"}
	}

	info, err := o.provider.FetchCall(ctx, callID)
	if err != nil {
		log.Printf("calling: failed to fetch status for call %s: %v", callID, err)
		o.logAttempt(ctx, types.CallAttempt{
			PhoneNumber:    number,
			ProviderCallID: callID,
			Status:         types.CallStatusFailed,
			ErrorMessage:   fmt.Sprintf("Failed to fetch call status: %s", telephony.FriendlyMessage(err)),
		})
		return telephony.CallInfo{}, err
	}

	o.logAttempt(ctx, types.CallAttempt{
		PhoneNumber:    number,
		ProviderCallID: callID,
		Status:         info.Status,
		Duration:       info.Duration,
	})
	log.Printf("calling: updated call status %s -> %s", callID, info.Status)
	return info, nil
}

// ConnectionStatus is the result of a provider connectivity probe
type ConnectionStatus struct {
	Connected     bool   `json:"connected"`
	AccountStatus string `json:"account_status,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Error         string `json:"error,omitempty"`
}

// TestConnection probes the provider by fetching the account
func (o *Orchestrator) TestConnection(ctx context.Context) ConnectionStatus {
	if o.provider == nil {
		return ConnectionStatus{Error: "telephony provider is not configured"}
	}
	account, err := o.provider.FetchAccount(ctx)
	if err != nil {
		log.Printf("calling: connection test failed: %v", err)
		return ConnectionStatus{Error: telephony.FriendlyMessage(err)}
	}
	if account.Status != "" && account.Status != "active" {
		log.Printf("calling: provider account status is %s", account.Status)
	}
	return ConnectionStatus{
		Connected:     account.Status == "" || account.Status == "active",
		AccountStatus: account.Status,
		AccountName:   account.FriendlyName,
	}
}
