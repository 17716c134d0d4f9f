package parsing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/types"
)

func TestEnrichPhoneNumbers_FillsMissingNumber(t *testing.T) {
	in := result(types.ActionCallSpecific, 0.6, nil)

	out := EnrichPhoneNumbers(in, "ring 18001234567 and 18007654321", phone.NewValidator(true))

	assert.Equal(t, "+9118001234567", out.Parameters.GetString(types.ParamPhoneNumber))
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
	assert.Equal(t, []string{"+9118001234567", "+9118007654321"}, out.Parameters[types.ParamAllPhoneNumbers])
	assert.False(t, in.Parameters.Has(types.ParamPhoneNumber), "input must not be modified")
}

func TestEnrichPhoneNumbers_CanonicalizesExisting(t *testing.T) {
	in := result(types.ActionAddNumber, 0.95, types.Parameters{"phone_number": "1800 123 4567"})

	out := EnrichPhoneNumbers(in, "add it", phone.NewValidator(false))

	assert.Equal(t, "+9118001234567", out.Parameters.GetString(types.ParamPhoneNumber))
	assert.Equal(t, 0.95, out.Confidence)
	assert.False(t, out.Parameters.Has(types.ParamAllPhoneNumbers))
}

func TestEnrichPhoneNumbers_InvalidUnderTestMode(t *testing.T) {
	in := result(types.ActionAddNumber, 0.5, nil)

	out := EnrichPhoneNumbers(in, "add 9876543210", phone.NewValidator(true))

	assert.Equal(t, "+919876543210", out.Parameters.GetString(types.ParamPhoneNumber))
	assert.Contains(t, out.Parameters.GetString(types.ParamPhoneNumberError), "only toll-free numbers allowed")
	assert.InDelta(t, (0.5+0.1)*0.7, out.Confidence, 1e-9)
}

func TestEnrichPhoneNumbers_ConfidenceClamped(t *testing.T) {
	in := result(types.ActionCallSpecific, 0.98, nil)
	out := EnrichPhoneNumbers(in, "call 9876543210", phone.NewValidator(false))
	assert.Equal(t, 1.0, out.Confidence)
}

func TestEnrichPhoneNumbers_NoNumbers(t *testing.T) {
	in := result(types.ActionCallAll, 0.5, nil)
	out := EnrichPhoneNumbers(in, "call all numbers", phone.NewValidator(false))
	assert.Equal(t, in.Confidence, out.Confidence)
	assert.Empty(t, out.Parameters)
}

func TestValidateCommand(t *testing.T) {
	now := time.Now()
	cmd := func(action types.Action, params types.Parameters) types.Command {
		return types.NewCommand(result(action, 0.9, params), "input", now)
	}

	tests := []struct {
		name    string
		cmd     types.Command
		wantErr string
	}{
		{"call all", cmd(types.ActionCallAll, nil), ""},
		{"view logs", cmd(types.ActionViewLogs, nil), ""},
		{"statistics", cmd(types.ActionGetStatistics, nil), ""},
		{"call specific ok", cmd(types.ActionCallSpecific, types.Parameters{"phone_number": "+9118001234567"}), ""},
		{"missing number", cmd(types.ActionRemoveNumber, nil), "Phone number is required for remove_number command"},
		{"number error", cmd(types.ActionAddNumber, types.Parameters{
			"phone_number":       "+919876543210",
			"phone_number_error": "Invalid phone number: +919876543210 (bad)",
		}), "Invalid phone number: +919876543210 (bad)"},
		{"unknown", cmd(types.ActionUnknown, nil), NotRecognizedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.cmd)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantErr, ve.Message)
		})
	}
}
