package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"github.com/jonathan/autodialer/internal/metrics"
)

const tracerName = "autodialer.llm"

// Client is an abstraction over language-model providers.
// Responses carry no structural guarantee; callers parse them defensively.
type Client interface {
	// GenerateContent generates free text using the specified model tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON asks for a JSON response using the specified model tier
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the provider model name for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a language-model client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, &ServiceError{Message: fmt.Sprintf("unsupported provider %q", config.Provider)}
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &ServiceError{Message: "API key is required"}
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, &ServiceError{Message: "failed to create Gemini client", Cause: err}
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateContent generates free text using the specified model tier
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, "generate_content", prompt, tier, false)
}

// GenerateJSON asks for a JSON response and strips any markdown fence around it
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, "generate_json", prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *GeminiClient) generate(ctx context.Context, operation, prompt string, tier ModelTier, asJSON bool) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", &ServiceError{Message: fmt.Sprintf("no model configured for tier %s", tier)}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "llm.GeminiClient."+operation,
		trace.WithAttributes(
			attribute.String("provider", string(ProviderGemini)),
			attribute.String("model", modelName),
			attribute.Int("prompt_chars", len(prompt)),
		),
	)
	defer span.End()

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.temperature(asJSON))
	if c.config.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(c.config.MaxOutputTokens)
	}
	if asJSON {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err == nil {
		var text string
		text, err = extractTextFromResponse(resp)
		if err == nil {
			metrics.RecordLLMCall(operation, time.Since(start), nil)
			span.SetAttributes(attribute.Int("response_chars", len(text)))
			return text, nil
		}
	} else {
		err = &ServiceError{Message: "failed to generate content", Cause: err}
	}

	metrics.RecordLLMCall(operation, time.Since(start), err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return "", err
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Ping sends a trivial prompt to confirm the service answers
func Ping(ctx context.Context, client Client) error {
	text, err := client.GenerateContent(ctx, "Respond with 'Connection successful' if you can read this.", TierLite)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return &ServiceError{Message: "empty response"}
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ServiceError{Message: "no candidates in response", Empty: true}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &ServiceError{Message: "no content in response", Empty: true}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", &ServiceError{Message: "no text parts in response", Empty: true}
	}

	return strings.Join(parts, ""), nil
}
