package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/llm"
	"github.com/jonathan/autodialer/internal/llm/llmtest"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/store/storetest"
	"github.com/jonathan/autodialer/internal/telephony"
	"github.com/jonathan/autodialer/internal/telephony/telephonytest"
	"github.com/jonathan/autodialer/internal/types"
)

func noSleep(context.Context, time.Duration) error { return nil }

type fixture struct {
	proc     *Processor
	store    *storetest.MemoryStore
	provider *telephonytest.FakeProvider
}

func newFixture(t *testing.T, testMode bool, client llm.Client, numbers ...string) fixture {
	t.Helper()
	st := storetest.New(numbers...)
	provider := &telephonytest.FakeProvider{}
	validator := phone.NewValidator(testMode)
	orch := calling.NewOrchestrator(provider, st, validator, calling.DefaultConfig(),
		calling.WithSleeper(noSleep),
		calling.WithRand(func() float64 { return 0 }),
	)
	proc := New(Options{
		Store:        st,
		Orchestrator: orch,
		LLM:          client,
		Validator:    validator,
		MaxNumbers:   5,
	})
	return fixture{proc: proc, store: st, provider: provider}
}

func TestProcess_EmptyInput(t *testing.T) {
	f := newFixture(t, true, nil)

	env := f.proc.Process(context.Background(), "   ")

	assert.Equal(t, commands.StatusError, env.Status)
	assert.Equal(t, types.ActionUnknown, env.Action)
	assert.Equal(t, NoInputMessage, env.Error)
	assert.Equal(t, types.MethodValidation, env.Command.ProcessingMethod)
	assert.Equal(t, 0.0, env.Command.Confidence)
	assert.Nil(t, env.ExecutionResult)
}

func TestProcess_CallAllWithoutLanguageModel(t *testing.T) {
	f := newFixture(t, true, nil, "+9118001234567", "+9118007654321")

	env := f.proc.Process(context.Background(), "call all numbers")

	require.Equal(t, commands.StatusSuccess, env.Status, env.Error)
	assert.Equal(t, types.ActionCallAll, env.Action)
	assert.Equal(t, types.MethodStructuredOnly, env.Command.ProcessingMethod)
	require.NotNil(t, env.Statistics)
	assert.Equal(t, 2, env.Statistics.Total)
	assert.Equal(t, 100.0, env.Statistics.SuccessRate)
	assert.Equal(t, "Started calling 2 numbers. 2 calls initiated successfully.", env.Response)
	assert.Len(t, f.provider.Requests(), 2)
}

func TestProcess_TestModeRejectsMobileNumber(t *testing.T) {
	f := newFixture(t, true, nil)

	env := f.proc.Process(context.Background(), "add 9876543210")

	assert.Equal(t, commands.StatusError, env.Status)
	assert.Equal(t, types.ActionAddNumber, env.Action)
	assert.Contains(t, env.Error, "only toll-free numbers allowed")
	assert.Contains(t, env.Response, "Please provide a valid Indian phone number")
	assert.NotEmpty(t, env.Parameters.GetString(types.ParamPhoneNumberError))
	n, err := f.store.CountNumbers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcess_AddNumber(t *testing.T) {
	f := newFixture(t, false, nil)

	env := f.proc.Process(context.Background(), "add +91 98765 43210")

	require.Equal(t, commands.StatusSuccess, env.Status, env.Error)
	require.NotNil(t, env.ExecutionResult)
	assert.Equal(t, "+919876543210", env.ExecutionResult.PhoneNumber())
	assert.Equal(t, "Added +919876543210 to your contact list.", env.Response)
}

func TestProcess_NotRecognized(t *testing.T) {
	f := newFixture(t, true, nil)

	env := f.proc.Process(context.Background(), "what's the weather like")

	assert.Equal(t, commands.StatusError, env.Status)
	assert.Equal(t, types.ActionUnknown, env.Action)
	assert.Contains(t, env.Response, "I didn't understand that command")
}

func TestProcess_LanguageModelPrimary(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: llmtest.JSON(`{"action":"view_logs","parameters":{"limit":5},"confidence":0.95,"explanation":"history"}`),
		GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "Here are your recent calls.", nil
		},
	}
	f := newFixture(t, true, client)

	env := f.proc.Process(context.Background(), "what happened lately")

	require.Equal(t, commands.StatusSuccess, env.Status, env.Error)
	assert.Equal(t, types.ActionViewLogs, env.Action)
	assert.Equal(t, types.MethodAIPrimary, env.Command.ProcessingMethod)
	require.NotNil(t, env.Fusion)
	assert.Equal(t, 2, env.Fusion.Rule)
	assert.Equal(t, "Here are your recent calls.", env.Response)

	logs, ok := env.ExecutionResult.Payload.(commands.LogsPayload)
	require.True(t, ok)
	assert.Equal(t, 5, logs.Filters.Limit)
}

func TestProcess_LanguageModelDownStillExecutes(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc:    llmtest.Fail(errors.New("connection refused")),
		GenerateContentFunc: llmtest.Fail(errors.New("connection refused")),
	}
	f := newFixture(t, true, client, "+9118001234567")

	env := f.proc.Process(context.Background(), "show call logs")

	require.Equal(t, commands.StatusSuccess, env.Status, env.Error)
	assert.Equal(t, types.ActionViewLogs, env.Action)
	assert.Equal(t, "Retrieved 0 call log entries.", env.Response)
}

func TestProcess_EnvelopeJSON(t *testing.T) {
	f := newFixture(t, true, nil, "+9118001234567")

	env := f.proc.Process(context.Background(), "call all numbers")
	body, err := json.Marshal(env)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "call_all", out["action"])
	assert.Contains(t, out, "execution_result")
	assert.Contains(t, out, "statistics")
	assert.Contains(t, out, "response")
	exec := out["execution_result"].(map[string]any)
	assert.Equal(t, float64(1), exec["total_numbers"])
}

func TestExecute_BypassesParsers(t *testing.T) {
	f := newFixture(t, true, nil)

	res := f.proc.Execute(context.Background(), types.ActionCallSpecific, types.Parameters{
		types.ParamPhoneNumber: "1800-123-4567",
	})

	assert.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, "+9118001234567", f.provider.Requests()[0].To)
}

func TestProcess_ProviderUnavailable(t *testing.T) {
	st := storetest.New("+9118001234567")
	validator := phone.NewValidator(true)
	proc := New(Options{
		Store:        st,
		Orchestrator: calling.NewOrchestrator(nil, st, validator, calling.DefaultConfig()),
		Validator:    validator,
	})

	env := proc.Process(context.Background(), "call all numbers")

	assert.Equal(t, commands.StatusError, env.Status)
	assert.Contains(t, env.Error, "Telephony provider not available")
}

func TestSystemStatus(t *testing.T) {
	okModel := &llmtest.MockClient{GenerateContentFunc: func(context.Context, string, llm.ModelTier) (string, error) {
		return "Connection successful", nil
	}}

	t.Run("fully operational", func(t *testing.T) {
		f := newFixture(t, true, okModel, "+9118001234567")
		f.provider.FetchAccountFunc = func(context.Context) (telephony.AccountInfo, error) {
			return telephony.AccountInfo{Status: "active", FriendlyName: "Dialer"}, nil
		}

		st := f.proc.SystemStatus(context.Background())

		assert.Equal(t, FullyOperational, st.Overall)
		assert.Equal(t, "System is fully operational", st.Message)
		assert.Equal(t, 1, st.PhoneNumbers)
		assert.True(t, st.TestMode)
		require.NotNil(t, st.Connection)
		assert.Equal(t, "Dialer", st.Connection.AccountName)
	})

	t.Run("partially operational without model", func(t *testing.T) {
		f := newFixture(t, true, nil)

		st := f.proc.SystemStatus(context.Background())

		assert.Equal(t, PartiallyOperational, st.Overall)
		assert.Equal(t, ComponentNotAvailable, st.AI)
		assert.Equal(t, ComponentOK, st.Telephony)
	})

	t.Run("not operational", func(t *testing.T) {
		failing := &llmtest.MockClient{GenerateContentFunc: llmtest.Fail(errors.New("quota"))}
		f := newFixture(t, true, failing)
		f.provider.FetchAccountFunc = func(context.Context) (telephony.AccountInfo, error) {
			return telephony.AccountInfo{}, &telephony.ProviderError{Code: 20003, Message: "auth"}
		}

		st := f.proc.SystemStatus(context.Background())

		assert.Equal(t, NotOperational, st.Overall)
		assert.Equal(t, ComponentFailed, st.AI)
		assert.Equal(t, ComponentFailed, st.Telephony)
	})

	t.Run("store down", func(t *testing.T) {
		f := newFixture(t, true, okModel)
		f.store.ListErr = errors.New("disk full")

		st := f.proc.SystemStatus(context.Background())

		assert.Equal(t, NotOperational, st.Overall)
		assert.Equal(t, ComponentFailed, st.Database)
	})
}
