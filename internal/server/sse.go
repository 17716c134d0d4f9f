package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/types"
)

// Event names on a bulk call stream
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// SSEWriter streams bulk call progress as Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      int
}

// NewSSEWriter sets the event-stream headers on w
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one numbered event with a JSON payload
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	s.id++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.id, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteProgress forwards one orchestrator progress event
func (s *SSEWriter) WriteProgress(ev calling.ProgressEvent) error {
	return s.WriteEvent(eventProgress, ev)
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent(eventError, map[string]string{"status": "error", "error": message}) //nolint:errcheck
}

// WriteComplete sends the finished bulk job
func (s *SSEWriter) WriteComplete(job types.BulkCallJob) {
	s.WriteEvent(eventComplete, job) //nolint:errcheck
}
