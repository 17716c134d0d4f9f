package telephony

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonathan/autodialer/internal/metrics"
)

const tracerName = "autodialer.telephony"

// DefaultRequestTimeout bounds each HTTP request to the Twilio API
const DefaultRequestTimeout = 10 * time.Second

// DefaultVoice is the text-to-speech voice used for spoken messages
const DefaultVoice = "alice"

// twilioAPI is the subset of the Twilio REST API the provider uses
type twilioAPI interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
	FetchCall(sid string, params *openapi.FetchCallParams) (*openapi.ApiV2010Call, error)
	FetchAccount(sid string) (*openapi.ApiV2010Account, error)
}

// TwilioConfig holds the credentials and caller ID for TwilioProvider
type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	FromNumber     string
	RequestTimeout time.Duration
	Voice          string
}

// Validate checks the credential shapes Twilio issues
func (c TwilioConfig) Validate() error {
	switch {
	case c.AccountSID == "":
		return &ConfigurationError{Key: "TWILIO_ACCOUNT_SID", Message: "is required"}
	case !strings.HasPrefix(c.AccountSID, "AC") || len(c.AccountSID) != 34:
		return &ConfigurationError{Key: "TWILIO_ACCOUNT_SID", Message: "must start with AC and be 34 characters"}
	case c.AuthToken == "":
		return &ConfigurationError{Key: "TWILIO_AUTH_TOKEN", Message: "is required"}
	case len(c.AuthToken) != 32:
		return &ConfigurationError{Key: "TWILIO_AUTH_TOKEN", Message: "must be 32 characters"}
	case c.FromNumber == "":
		return &ConfigurationError{Key: "TWILIO_PHONE_NUMBER", Message: "is required"}
	case !strings.HasPrefix(c.FromNumber, "+") || len(c.FromNumber) < 10 || len(c.FromNumber) > 16:
		return &ConfigurationError{Key: "TWILIO_PHONE_NUMBER", Message: "must start with + and be 10-16 characters"}
	}
	return nil
}

// TwilioProvider places calls through the Twilio REST API
type TwilioProvider struct {
	api        twilioAPI
	accountSID string
	from       string
	voice      string
}

// NewTwilioProvider validates cfg and builds a provider
func NewTwilioProvider(cfg TwilioConfig) (*TwilioProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	rest.SetTimeout(timeout)

	return newTwilioProvider(rest.Api, cfg), nil
}

func newTwilioProvider(api twilioAPI, cfg TwilioConfig) *TwilioProvider {
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	return &TwilioProvider{
		api:        api,
		accountSID: cfg.AccountSID,
		from:       cfg.FromNumber,
		voice:      voice,
	}
}

// CreateCall places a call that speaks req.Message to the callee
func (p *TwilioProvider) CreateCall(ctx context.Context, req CallRequest) (string, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "telephony.TwilioProvider.CreateCall",
		trace.WithAttributes(attribute.String("to", req.To)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: req.Message, Voice: p.voice},
	})
	if err != nil {
		return "", &ProviderError{Message: "failed to build call script", Cause: err}
	}

	ring := req.RingTimeout
	if ring <= 0 {
		ring = DefaultCallTimeout
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(p.from)
	params.SetTwiml(doc)
	params.SetTimeout(int(ring.Seconds()))

	start := time.Now()
	call, err := p.api.CreateCall(params)
	if err == nil && (call == nil || call.Sid == nil) {
		err = &ProviderError{Message: "provider returned no call sid"}
	}
	metrics.RecordProviderRequest("create_call", time.Since(start), err)
	if err != nil {
		perr := toProviderError(err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		return "", perr
	}

	span.SetAttributes(attribute.String("call_sid", *call.Sid))
	return *call.Sid, nil
}

// FetchCall returns the call's current status and duration
func (p *TwilioProvider) FetchCall(ctx context.Context, callID string) (CallInfo, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "telephony.TwilioProvider.FetchCall",
		trace.WithAttributes(attribute.String("call_sid", callID)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return CallInfo{}, err
	}

	start := time.Now()
	call, err := p.api.FetchCall(callID, &openapi.FetchCallParams{})
	metrics.RecordProviderRequest("fetch_call", time.Since(start), err)
	if err != nil {
		perr := toProviderError(err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		return CallInfo{}, perr
	}

	info := CallInfo{ID: callID}
	if call != nil {
		info.RawStatus = deref(call.Status)
		info.StartTime = deref(call.StartTime)
		info.EndTime = deref(call.EndTime)
		if d, err := strconv.Atoi(deref(call.Duration)); err == nil {
			info.Duration = d
		}
	}
	info.Status = MapStatus(info.RawStatus)
	return info, nil
}

// FetchAccount returns the account status
func (p *TwilioProvider) FetchAccount(ctx context.Context) (AccountInfo, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "telephony.TwilioProvider.FetchAccount")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return AccountInfo{}, err
	}

	start := time.Now()
	account, err := p.api.FetchAccount(p.accountSID)
	metrics.RecordProviderRequest("fetch_account", time.Since(start), err)
	if err != nil {
		perr := toProviderError(err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		return AccountInfo{}, perr
	}

	if account == nil {
		return AccountInfo{}, nil
	}
	return AccountInfo{
		Status:       deref(account.Status),
		FriendlyName: deref(account.FriendlyName),
	}, nil
}

// toProviderError converts SDK errors into *ProviderError, keeping the
// Twilio error code when the API returned one
func toProviderError(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	var rest *twclient.TwilioRestError
	if errors.As(err, &rest) {
		return &ProviderError{Code: rest.Code, Status: rest.Status, Message: rest.Message}
	}
	return &ProviderError{Message: "request failed", Cause: err}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
