package log

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureLogger records events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureLogger) Log(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureLogger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &captureLogger{}
	b := &captureLogger{}

	multi := NewMultiLogger(a, b, NoopLogger{})
	multi.Log(testEvent())
	multi.Log(testEvent())

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
}

func TestSlogAdapterWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	adapter := NewSlogAdapter(slog.New(handler))
	adapter.Log(testEvent())

	out := buf.String()
	assert.Contains(t, out, "direction=IN")
	assert.Contains(t, out, "layer=FRAME")
	assert.Contains(t, out, "device_uid=05e0:00000042")
	assert.Contains(t, out, "pid=96") // DEVICE_INFO
}

func TestNoopLoggerDiscards(t *testing.T) {
	// Usable as a zero value and must not panic.
	var l NoopLogger
	l.Log(testEvent())
}
