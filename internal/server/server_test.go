package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/config"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/pipeline"
	"github.com/jonathan/autodialer/internal/store/storetest"
	"github.com/jonathan/autodialer/internal/telephony/telephonytest"
)

func noSleep(context.Context, time.Duration) error { return nil }

// testServer bundles a server with the fakes behind it
type testServer struct {
	*Server
	store    *storetest.MemoryStore
	provider *telephonytest.FakeProvider
}

type serverOption func(*config.Config, *pipeline.Options)

func withoutTelephony() serverOption {
	return func(_ *config.Config, opts *pipeline.Options) { opts.Orchestrator = nil }
}

func withRateLimit() serverOption {
	return func(cfg *config.Config, _ *pipeline.Options) { cfg.RateLimitEnabled = true }
}

func newTestServer(t *testing.T, numbers []string, options ...serverOption) *testServer {
	t.Helper()

	cfg := config.Defaults()
	cfg.RateLimitEnabled = false
	cfg.CallDelay = 0

	st := storetest.New(numbers...)
	provider := &telephonytest.FakeProvider{}
	validator := phone.NewValidator(true)
	orch := calling.NewOrchestrator(provider, st, validator, calling.DefaultConfig(),
		calling.WithSleeper(noSleep),
		calling.WithRand(func() float64 { return 0 }),
	)
	popts := pipeline.Options{
		Store:        st,
		Orchestrator: orch,
		Validator:    validator,
		MaxNumbers:   10,
	}
	for _, opt := range options {
		opt(&cfg, &popts)
	}

	s, err := New(Options{Config: cfg, Processor: pipeline.New(popts), Store: st})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &testServer{Server: s, store: st, provider: provider}
}

// do sends a request through the full middleware chain
func (s *testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Processor: pipeline.New(pipeline.Options{Store: storetest.New()})})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/health", "")
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	id := uuid.NewString()
	w = s.do(http.MethodGet, "/health", "", RequestIDHeader, id)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	// Malformed IDs are replaced
	w = s.do(http.MethodGet, "/health", "", RequestIDHeader, "not-a-uuid\n")
	assert.NotEqual(t, "not-a-uuid\n", w.Header().Get(RequestIDHeader))
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	ctx := context.WithValue(context.Background(), requestIDKey, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/health", "", "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodOptions, "/calls", "", "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestCORS_Wildcard(t *testing.T) {
	s := newTestServer(t, nil, func(cfg *config.Config, _ *pipeline.Options) { cfg.CORSOrigins = []string{"*"} })

	w := s.do(http.MethodGet, "/health", "", "Origin", "https://app.example")
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, nil, withRateLimit())

	// Bulk calls allow a burst of two per client
	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/calls/bulk", `{}`)
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}

	w := s.do(http.MethodPost, "/calls/bulk", `{}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode(t, w)["error"])

	// Health checks are never limited
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodGet, "/health", "")

	w := s.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "autodialer_http_request_duration_seconds")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/runs", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodPut, "/numbers", `{}`).Code)
}

func TestStatusRecorder_Flush(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rec.WriteHeader(http.StatusAccepted)
	rec.Flush()

	assert.Equal(t, http.StatusAccepted, rec.status)
	assert.True(t, w.Flushed)
}

func TestSSEWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteEvent("progress", map[string]int{"index": 1}))
	sse.WriteError("boom")

	body := w.Body.String()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "id: 1\nevent: progress\ndata: {\"index\":1}\n\n"), body)
	assert.Contains(t, body, "id: 2\nevent: error\ndata: {\"error\":\"boom\",\"status\":\"error\"}\n\n")
}

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(struct{ http.ResponseWriter }{httptest.NewRecorder()})

	assert.ErrorIs(t, err, errStreamingUnsupported)
}
