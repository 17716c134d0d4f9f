package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autodialer/internal/types"
)

func TestStructuredParser_Parse(t *testing.T) {
	p := NewStructuredParser()

	tests := []struct {
		name       string
		input      string
		action     types.Action
		confidence float64
		params     types.Parameters
	}{
		{
			name:       "call all",
			input:      "call all numbers",
			action:     types.ActionCallAll,
			confidence: 0.5,
			params:     types.Parameters{},
		},
		{
			name:       "call specific mobile",
			input:      "call 9876543210",
			action:     types.ActionCallSpecific,
			confidence: 0.85,
			params:     types.Parameters{"phone_number": "+919876543210"},
		},
		{
			name:       "add toll free",
			input:      "add 18001234567",
			action:     types.ActionAddNumber,
			confidence: 0.75,
			params:     types.Parameters{"phone_number": "+9118001234567"},
		},
		{
			name:       "view logs with limit",
			input:      "show call logs for the last 10 calls",
			action:     types.ActionViewLogs,
			confidence: 0.55,
			params:     types.Parameters{"limit": 10},
		},
		{
			name:       "statistics with day window",
			input:      "show statistics for 7 days",
			action:     types.ActionGetStatistics,
			confidence: 0.45,
			params:     types.Parameters{"days": 7},
		},
		{
			name:       "bulk call with delay",
			input:      "call all numbers with delay 5",
			action:     types.ActionCallAll,
			confidence: 0.5,
			params:     types.Parameters{"delay": 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse(tt.input)
			assert.Equal(t, tt.action, res.Action)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			assert.Equal(t, tt.params, res.Parameters)
			assert.Equal(t, types.MethodStructured, res.ProcessingMethod)
		})
	}
}

func TestStructuredParser_Unknown(t *testing.T) {
	p := NewStructuredParser()

	for _, input := range []string{"hello there", "call someone", ""} {
		res := p.Parse(input)
		assert.Equal(t, types.ActionUnknown, res.Action, input)
		assert.Equal(t, 0.1, res.Confidence, input)
		assert.Equal(t, "No clear action pattern detected", res.Explanation)
		assert.Empty(t, res.Parameters)
	}
}

func TestStructuredParser_PhonePenaltyAndBonus(t *testing.T) {
	callSpecific := patterns[1]
	assert.InDelta(t, (0.2+0.15)*0.3, scorePattern(callSpecific, "call someone", false), 1e-9)
	assert.InDelta(t, 0.2+0.3+0.15+0.2, scorePattern(callSpecific, "call 9876543210", true), 1e-9)
}

func TestStructuredParser_ConfidenceClamped(t *testing.T) {
	p := NewStructuredParser()
	res := p.Parse("call phone dial +919876543210 call 9876543210")
	assert.Equal(t, types.ActionCallSpecific, res.Action)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestStructuredParser_PhoneOnlyForPhoneActions(t *testing.T) {
	p := NewStructuredParser()
	res := p.Parse("view history for 9876543210")
	assert.Equal(t, types.ActionViewLogs, res.Action)
	assert.False(t, res.Parameters.Has(types.ParamPhoneNumber))
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "your order has shipped", ExtractMessage("call 18001234567 with message 'your order has shipped'"))
	assert.Equal(t, "hello", ExtractMessage(`Call 18001234567 and SAY "hello"`))
	assert.Equal(t, "", ExtractMessage("call all numbers"))
}
