package log

// Logger receives protocol events from ports, responders, and
// controllers. Pass nil or NoopLogger to disable capture.
type Logger interface {
	// Log records one bus event. Implementations must be thread-safe:
	// a port's receive goroutine and the engine both log concurrently.
	// Blocking here stalls the exchange in flight, so process quickly
	// or queue.
	Log(event Event)
}

// NoopLogger discards all events. Use when capture is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
