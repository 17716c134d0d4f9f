package telephony

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/jonathan/autodialer/internal/types"
)

type fakeAPI struct {
	createParams *openapi.CreateCallParams
	createResp   *openapi.ApiV2010Call
	createErr    error
	fetchSID     string
	fetchResp    *openapi.ApiV2010Call
	fetchErr     error
	account      *openapi.ApiV2010Account
	accountErr   error
	accountSID   string
}

func (f *fakeAPI) CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error) {
	f.createParams = params
	return f.createResp, f.createErr
}

func (f *fakeAPI) FetchCall(sid string, _ *openapi.FetchCallParams) (*openapi.ApiV2010Call, error) {
	f.fetchSID = sid
	return f.fetchResp, f.fetchErr
}

func (f *fakeAPI) FetchAccount(sid string) (*openapi.ApiV2010Account, error) {
	f.accountSID = sid
	return f.account, f.accountErr
}

func str(s string) *string { return &s }

func validConfig() TwilioConfig {
	return TwilioConfig{
		AccountSID: "AC" + strings.Repeat("a", 32),
		AuthToken:  strings.Repeat("b", 32),
		FromNumber: "+15005550006",
	}
}

func TestTwilioConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TwilioConfig)
		wantKey string
	}{
		{"valid", func(*TwilioConfig) {}, ""},
		{"missing sid", func(c *TwilioConfig) { c.AccountSID = "" }, "TWILIO_ACCOUNT_SID"},
		{"bad sid prefix", func(c *TwilioConfig) { c.AccountSID = "XX" + strings.Repeat("a", 32) }, "TWILIO_ACCOUNT_SID"},
		{"short token", func(c *TwilioConfig) { c.AuthToken = "abc" }, "TWILIO_AUTH_TOKEN"},
		{"from without plus", func(c *TwilioConfig) { c.FromNumber = "15005550006" }, "TWILIO_PHONE_NUMBER"},
		{"from too short", func(c *TwilioConfig) { c.FromNumber = "+1500" }, "TWILIO_PHONE_NUMBER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.wantKey, ce.Key)
		})
	}
}

func TestNewTwilioProvider_RejectsBadConfig(t *testing.T) {
	_, err := NewTwilioProvider(TwilioConfig{})
	require.Error(t, err)
	assert.Equal(t, CodeConfiguration, ErrorCode(err))
}

func TestNewTwilioProvider_Valid(t *testing.T) {
	p, err := NewTwilioProvider(validConfig())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestTwilioProvider_CreateCall(t *testing.T) {
	api := &fakeAPI{createResp: &openapi.ApiV2010Call{Sid: str("CA123")}}
	p := newTwilioProvider(api, validConfig())

	id, err := p.CreateCall(context.Background(), CallRequest{To: "+9118001234567", Message: "Hello & welcome"})

	require.NoError(t, err)
	assert.Equal(t, "CA123", id)
	require.NotNil(t, api.createParams)
	assert.Equal(t, "+9118001234567", *api.createParams.To)
	assert.Equal(t, "+15005550006", *api.createParams.From)
	assert.Equal(t, 30, *api.createParams.Timeout)
	assert.Contains(t, *api.createParams.Twiml, "<Say")
	assert.Contains(t, *api.createParams.Twiml, "Hello &amp; welcome")
}

func TestTwilioProvider_CreateCallRestError(t *testing.T) {
	api := &fakeAPI{createErr: &twclient.TwilioRestError{Code: 21211, Status: 400, Message: "The 'To' number is not a valid phone number."}}
	p := newTwilioProvider(api, validConfig())

	_, err := p.CreateCall(context.Background(), CallRequest{To: "+910000"})

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 21211, pe.Code)
	assert.Equal(t, 400, pe.Status)
	assert.Equal(t, "21211", ErrorCode(err))
	assert.Equal(t, "Invalid phone number format", FriendlyMessage(err))
	assert.False(t, IsRecoverable(err))
}

func TestTwilioProvider_CreateCallTransportError(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("dial tcp: connection refused")}
	p := newTwilioProvider(api, validConfig())

	_, err := p.CreateCall(context.Background(), CallRequest{To: "+9118001234567"})

	assert.Equal(t, CodeUnknown, ErrorCode(err))
	assert.True(t, IsRecoverable(err))
}

func TestTwilioProvider_CreateCallMissingSid(t *testing.T) {
	p := newTwilioProvider(&fakeAPI{createResp: &openapi.ApiV2010Call{}}, validConfig())
	_, err := p.CreateCall(context.Background(), CallRequest{To: "+9118001234567"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no call sid")
}

func TestTwilioProvider_CreateCallCanceledContext(t *testing.T) {
	api := &fakeAPI{}
	p := newTwilioProvider(api, validConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CreateCall(ctx, CallRequest{To: "+9118001234567"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, api.createParams)
}

func TestTwilioProvider_FetchCall(t *testing.T) {
	api := &fakeAPI{fetchResp: &openapi.ApiV2010Call{
		Status:    str("no-answer"),
		Duration:  str("0"),
		StartTime: str("Mon, 01 Jan 2024 10:00:00 +0000"),
	}}
	p := newTwilioProvider(api, validConfig())

	info, err := p.FetchCall(context.Background(), "CA9")

	require.NoError(t, err)
	assert.Equal(t, "CA9", api.fetchSID)
	assert.Equal(t, types.CallStatusNoAnswer, info.Status)
	assert.Equal(t, "no-answer", info.RawStatus)
	assert.Equal(t, 0, info.Duration)
	assert.NotEmpty(t, info.StartTime)
}

func TestTwilioProvider_FetchAccount(t *testing.T) {
	api := &fakeAPI{account: &openapi.ApiV2010Account{Status: str("active"), FriendlyName: str("Dialer")}}
	cfg := validConfig()
	p := newTwilioProvider(api, cfg)

	info, err := p.FetchAccount(context.Background())

	require.NoError(t, err)
	assert.Equal(t, cfg.AccountSID, api.accountSID)
	assert.Equal(t, AccountInfo{Status: "active", FriendlyName: "Dialer"}, info)
}

func TestTwilioProvider_FetchAccountAuthFailure(t *testing.T) {
	api := &fakeAPI{accountErr: &twclient.TwilioRestError{Code: 20003, Status: 401, Message: "Authenticate"}}
	p := newTwilioProvider(api, validConfig())

	_, err := p.FetchAccount(context.Background())

	assert.Equal(t, "Authentication failed - check Twilio credentials", FriendlyMessage(err))
}

func TestMapStatus(t *testing.T) {
	tests := map[string]types.CallStatus{
		"completed":   types.CallStatusCompleted,
		"answered":    types.CallStatusCompleted,
		"Busy":        types.CallStatusBusy,
		"no-answer":   types.CallStatusNoAnswer,
		"canceled":    types.CallStatusCanceled,
		"in-progress": types.CallStatusInProgress,
		"ringing":     types.CallStatusRinging,
		"queued":      types.CallStatusQueued,
		"weird":       types.CallStatusFailed,
		"":            types.CallStatusFailed,
	}
	for raw, want := range tests {
		assert.Equal(t, want, MapStatus(raw), raw)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout text", errors.New("request timeout"), true},
		{"rate limit", &ProviderError{Code: 20429, Message: "Rate limit exceeded"}, true},
		{"denylisted code with transient text", &ProviderError{Code: 21214, Message: "network unavailable"}, false},
		{"denylisted unreachable", &ProviderError{Code: 21212, Message: "connection lost"}, false},
		{"plain failure", errors.New("permission denied"), false},
		{"busy", &ProviderError{Message: "line busy"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecoverable(tt.err))
		})
	}
}

func TestProviderError_Messages(t *testing.T) {
	err := &ProviderError{Code: 99999, Message: "odd"}
	assert.Equal(t, "provider error 99999: odd", err.Error())
	assert.Equal(t, "odd", err.FriendlyMessage())
	assert.Equal(t, "99999", err.CodeString())

	bare := &ProviderError{}
	assert.Equal(t, "Telephony provider error", bare.FriendlyMessage())
	assert.Equal(t, CodeUnknown, bare.CodeString())

	cause := errors.New("eof")
	wrapped := &ProviderError{Message: "request failed", Cause: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "provider error: request failed: eof", wrapped.Error())
}
