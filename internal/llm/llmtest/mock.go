// Package llmtest provides a scriptable llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/jonathan/autodialer/internal/llm"
)

// MockClient implements llm.Client with optional function hooks. Unset hooks
// return an empty string and no error. Prompts are recorded in order.
type MockClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	CloseFunc           func() error

	mu      sync.Mutex
	prompts []string
}

var _ llm.Client = (*MockClient)(nil)

// GenerateContent calls GenerateContentFunc when set
func (m *MockClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.record(prompt)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", nil
}

// GenerateJSON calls GenerateJSONFunc when set
func (m *MockClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.record(prompt)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return "", nil
}

// GetModel returns a fixed model name
func (m *MockClient) GetModel(llm.ModelTier) string {
	return "mock-model"
}

// Close calls CloseFunc when set
func (m *MockClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Prompts returns every prompt received so far
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockClient) record(prompt string) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
}

// JSON returns a GenerateJSONFunc that always answers with body
func JSON(body string) func(context.Context, string, llm.ModelTier) (string, error) {
	return func(context.Context, string, llm.ModelTier) (string, error) {
		return body, nil
	}
}

// Fail returns a generate func that always fails with err
func Fail(err error) func(context.Context, string, llm.ModelTier) (string, error) {
	return func(context.Context, string, llm.ModelTier) (string, error) {
		return "", err
	}
}
