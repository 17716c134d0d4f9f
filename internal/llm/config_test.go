package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string
	}{
		{"default model", "", DefaultModel},
		{"custom model", "gemini-2.0-flash", "gemini-2.0-flash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.model)

			assert.Equal(t, ProviderGemini, cfg.Provider)
			assert.Equal(t, tt.want, cfg.GetModel(TierStandard))
			assert.Equal(t, DefaultLiteModel, cfg.GetModel(TierLite))
		})
	}
}

func TestGetModel_FallsBackToStandard(t *testing.T) {
	cfg := &Config{Models: map[ModelTier]string{TierStandard: "parser"}}

	assert.Equal(t, "parser", cfg.GetModel(TierLite))
	assert.Equal(t, "parser", cfg.GetModel("unknown"))
	assert.Empty(t, (&Config{}).GetModel(TierStandard))
}

func TestTemperature(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, float32(0.1), cfg.temperature(true))
	assert.Equal(t, float32(0.7), cfg.temperature(false))

	empty := &Config{}
	assert.Equal(t, float32(0.1), empty.temperature(true))
	assert.Equal(t, float32(0.7), empty.temperature(false))

	custom := &Config{JSONTemperature: 0.3, TextTemperature: 0.9}
	assert.Equal(t, float32(0.3), custom.temperature(true))
	assert.Equal(t, float32(0.9), custom.temperature(false))
}
