package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"localchat-backend/internal/generation"
)

// SSEWriter writes generation events to an HTTP response as Server-Sent Events.
// It is safe for concurrent use.
type SSEWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter wraps w. It fails if w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &SSEWriter{writer: w, flusher: flusher}, nil
}

// WriteEvent writes one event and flushes it.
// Multi-line payloads are split across data lines.
func (w *SSEWriter) WriteEvent(ev generation.Event) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(ev.Name())
	b.WriteByte('\n')
	for _, line := range splitLines(ev.Payload()) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.writer.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Name(), err)
	}
	w.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment line.
func (w *SSEWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures response headers for an event stream.
// Must be called before the first write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func splitLines(payload string) []string {
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	payload = strings.ReplaceAll(payload, "\r", "\n")
	return strings.Split(payload, "\n")
}
