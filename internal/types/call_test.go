package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallStatus_Valid(t *testing.T) {
	assert.True(t, CallStatusNoAnswer.Valid())
	assert.True(t, CallStatusInProgress.Valid())
	assert.False(t, CallStatus("answered").Valid())
	assert.False(t, CallStatus("").Valid())
}

func TestNewBatchStatistics(t *testing.T) {
	tests := []struct {
		name    string
		results []CallResult
		want    BatchStatistics
	}{
		{
			name:    "empty",
			results: nil,
			want:    BatchStatistics{},
		},
		{
			name: "mixed",
			results: []CallResult{
				{Status: CallOutcomeSuccess, CallID: "CA1"},
				{Status: CallOutcomeFailed},
			},
			want: BatchStatistics{Total: 2, Successful: 1, Failed: 1, InProgress: 1, SuccessRate: 50},
		},
		{
			name: "thirds round to two decimals",
			results: []CallResult{
				{Status: CallOutcomeSuccess, CallID: "CA1"},
				{Status: CallOutcomeFailed},
				{Status: CallOutcomeFailed},
			},
			want: BatchStatistics{Total: 3, Successful: 1, Failed: 2, InProgress: 1, SuccessRate: 33.33},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewBatchStatistics(tt.results)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Successful+got.Failed)
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0, 0))
	assert.Equal(t, 100.0, Percent(4, 4))
	assert.Equal(t, 66.67, Percent(2, 3))
}
