package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autodialer/internal/types"
)

func result(action types.Action, confidence float64, params types.Parameters) types.ParseResult {
	if params == nil {
		params = types.Parameters{}
	}
	return types.ParseResult{Action: action, Confidence: confidence, Parameters: params}
}

func TestFuse_NoAIResult(t *testing.T) {
	s := result(types.ActionCallAll, 0.95, nil)

	out, decision := Fuse(s, nil)

	assert.Equal(t, types.ActionCallAll, out.Action)
	assert.Equal(t, types.MethodStructuredOnly, out.ProcessingMethod)
	assert.Equal(t, 1, decision.Rule)
	assert.Empty(t, out.BackupAction)
}

func TestFuse_Rules(t *testing.T) {
	tests := []struct {
		name     string
		s, a     types.ParseResult
		rule     int
		method   types.ProcessingMethod
		action   types.Action
		backup   types.Action
		aiErrMsg string
	}{
		{
			name:   "ai at threshold wins even against stronger structured",
			s:      result(types.ActionViewLogs, 0.95, nil),
			a:      result(types.ActionCallAll, 0.8, nil),
			rule:   2,
			method: types.MethodAIPrimary,
			action: types.ActionCallAll,
		},
		{
			name:   "ai just below threshold loses to stronger structured",
			s:      result(types.ActionViewLogs, 0.95, nil),
			a:      result(types.ActionCallAll, 0.79, nil),
			rule:   3,
			method: types.MethodStructuredPrimary,
			action: types.ActionViewLogs,
			backup: types.ActionCallAll,
		},
		{
			name:     "ai error blocks primary",
			s:        result(types.ActionViewLogs, 0.5, nil),
			a:        result(types.ActionCallAll, 0.9, nil),
			aiErrMsg: "Command not recognized",
			rule:     5,
			method:   types.MethodAIWithBackup,
			action:   types.ActionCallAll,
			backup:   types.ActionViewLogs,
		},
		{
			name:   "unknown ai blocks primary",
			s:      result(types.ActionViewLogs, 0.85, nil),
			a:      result(types.ActionUnknown, 0.9, nil),
			rule:   4,
			method: types.MethodCombined,
			action: types.ActionUnknown,
			backup: types.ActionViewLogs,
		},
		{
			name:   "gap just under margin combines",
			s:      result(types.ActionViewLogs, 0.3, nil),
			a:      result(types.ActionGetStatistics, 0.49, nil),
			rule:   4,
			method: types.MethodCombined,
			action: types.ActionGetStatistics,
			backup: types.ActionViewLogs,
		},
		{
			name:   "gap exactly at margin does not combine",
			s:      result(types.ActionViewLogs, 0.3, nil),
			a:      result(types.ActionGetStatistics, 0.5, nil),
			rule:   5,
			method: types.MethodAIWithBackup,
			action: types.ActionGetStatistics,
			backup: types.ActionViewLogs,
		},
		{
			name:   "tie with degraded ai still prefers ai",
			s:      result(types.ActionCallAll, 0.1, nil),
			a:      result(types.ActionUnknown, 0.1, nil),
			rule:   4,
			method: types.MethodCombined,
			action: types.ActionUnknown,
			backup: types.ActionCallAll,
		},
		{
			name:   "equal confidence is not strictly greater",
			s:      result(types.ActionCallAll, 0.7, nil),
			a:      result(types.ActionViewLogs, 0.7, nil),
			rule:   4,
			method: types.MethodCombined,
			action: types.ActionViewLogs,
			backup: types.ActionCallAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			a.Error = tt.aiErrMsg

			out, decision := Fuse(tt.s, &a)

			assert.Equal(t, tt.rule, decision.Rule)
			assert.Equal(t, tt.method, decision.Method)
			assert.Equal(t, tt.method, out.ProcessingMethod)
			assert.Equal(t, tt.action, out.Action)
			assert.Equal(t, tt.backup, out.BackupAction)
			assert.Equal(t, tt.s.Action, decision.StructuredAction)
			assert.Equal(t, tt.a.Action, decision.AIAction)
		})
	}
}

func TestFuse_CombinedMergesParametersAIWins(t *testing.T) {
	s := result(types.ActionCallSpecific, 0.6, types.Parameters{
		"phone_number": "+919876543210",
		"message":      "from structured",
	})
	a := result(types.ActionCallSpecific, 0.7, types.Parameters{
		"message": "from ai",
	})

	out, decision := Fuse(s, &a)

	assert.Equal(t, 4, decision.Rule)
	assert.Equal(t, types.Parameters{
		"phone_number": "+919876543210",
		"message":      "from ai",
	}, out.Parameters)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)

	// inputs are untouched
	assert.Equal(t, "from structured", s.Parameters.GetString("message"))
	assert.Empty(t, a.ProcessingMethod)
	assert.Len(t, a.Parameters, 1)
}

func TestFuse_ConfidenceStaysInRange(t *testing.T) {
	values := []float64{0, 0.1, 0.29, 0.3, 0.5, 0.79, 0.8, 0.95, 1}
	for _, sc := range values {
		for _, ac := range values {
			s := result(types.ActionCallAll, sc, nil)
			a := result(types.ActionViewLogs, ac, nil)
			out, _ := Fuse(s, &a)
			assert.GreaterOrEqual(t, out.Confidence, 0.0)
			assert.LessOrEqual(t, out.Confidence, 1.0)
			if ac >= AIPrimaryThreshold {
				assert.Equal(t, types.ActionViewLogs, out.Action)
			}
		}
	}
}
