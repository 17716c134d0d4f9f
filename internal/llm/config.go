// Package llm provides language-model configuration and client abstractions
// used by the command parser and the response generator.
package llm

// ModelTier selects which configured model serves a prompt
type ModelTier string

const (
	// TierLite serves connectivity probes
	TierLite ModelTier = "lite"
	// TierStandard serves command parsing and reply wording
	TierStandard ModelTier = "standard"
)

// Provider represents a language-model provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Default models per tier
const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultLiteModel = "gemini-2.5-flash-lite"
)

const (
	// JSON prompts are parsed by code and must stay stable between runs
	defaultJSONTemperature = 0.1
	defaultTextTemperature = 0.7
	// replies are one or two sentences; parse results are a small object
	defaultMaxOutputTokens = 512
)

// Config holds the model configuration for the application
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	JSONTemperature float32
	TextTemperature float32
	MaxOutputTokens int32
}

// DefaultConfig returns the Gemini configuration with the default models
func DefaultConfig() *Config {
	return NewConfig("")
}

// NewConfig returns a Gemini configuration that parses commands and words
// replies with model. An empty model selects DefaultModel.
func NewConfig(model string) *Config {
	if model == "" {
		model = DefaultModel
	}
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     DefaultLiteModel,
			TierStandard: model,
		},
		JSONTemperature: defaultJSONTemperature,
		TextTemperature: defaultTextTemperature,
		MaxOutputTokens: defaultMaxOutputTokens,
	}
}

// GetModel returns the model name for a tier, falling back to the standard
// model. Returns "" when neither is configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model := c.Models[tier]; model != "" {
		return model
	}
	return c.Models[TierStandard]
}

func (c *Config) temperature(asJSON bool) float32 {
	if asJSON {
		if c.JSONTemperature <= 0 {
			return defaultJSONTemperature
		}
		return c.JSONTemperature
	}
	if c.TextTemperature <= 0 {
		return defaultTextTemperature
	}
	return c.TextTemperature
}
