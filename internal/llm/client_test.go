package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	text string
	err  error
}

func (s *stubClient) GenerateContent(context.Context, string, ModelTier) (string, error) {
	return s.text, s.err
}

func (s *stubClient) GenerateJSON(context.Context, string, ModelTier) (string, error) {
	return s.text, s.err
}

func (s *stubClient) GetModel(ModelTier) string { return "stub" }

func (s *stubClient) Close() error { return nil }

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), nil, "")
	require.Error(t, err)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message, "API key is required")
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "carrier-pigeon"}, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestPing(t *testing.T) {
	assert.NoError(t, Ping(context.Background(), &stubClient{text: "Connection successful"}))

	err := Ping(context.Background(), &stubClient{text: "   "})
	assert.True(t, IsEmptyResponse(err))

	boom := errors.New("boom")
	assert.ErrorIs(t, Ping(context.Background(), &stubClient{err: boom}), boom)
}
