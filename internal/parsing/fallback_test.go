package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autodialer/internal/types"
)

func TestFallbackParser_Parse(t *testing.T) {
	p := NewFallbackParser()

	tests := []struct {
		input      string
		action     types.Action
		confidence float64
		phone      string
	}{
		{"please call all numbers", types.ActionCallAll, 0.8, ""},
		{"start calling now", types.ActionCallAll, 0.8, ""},
		{"dial 9876543210", types.ActionCallSpecific, 0.75, "+919876543210"},
		{"save +91 1800 123 4567", types.ActionAddNumber, 0.75, "+9118001234567"},
		{"delete 18001234567", types.ActionRemoveNumber, 0.75, "+9118001234567"},
		{"show me the history", types.ActionViewLogs, 0.7, ""},
		{"stats please", types.ActionGetStatistics, 0.7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := p.Parse(tt.input)
			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.confidence, res.Confidence)
			assert.Equal(t, tt.phone, res.Parameters.GetString(types.ParamPhoneNumber))
			assert.Equal(t, types.MethodAIFallback, res.ProcessingMethod)
			assert.Empty(t, res.Error)
		})
	}
}

func TestFallbackParser_PhoneActionsNeedNumber(t *testing.T) {
	res := NewFallbackParser().Parse("remove that number")
	assert.Equal(t, types.ActionUnknown, res.Action)
}

func TestFallbackParser_Unknown(t *testing.T) {
	res := NewFallbackParser().Parse("what's the weather")
	assert.Equal(t, types.ActionUnknown, res.Action)
	assert.Equal(t, 0.1, res.Confidence)
	assert.Equal(t, "Command not recognized", res.Error)
	assert.NotNil(t, res.Parameters)
}
