package log

// Logger is implemented by sinks that receive protocol events.
// Pass nil or NoopLogger to disable event logging.
type Logger interface {
	// Log records a protocol event. Implementations must be safe for
	// concurrent use and should process or queue the event quickly;
	// blocking here stalls the message path.
	Log(event Event)
}

// NoopLogger discards all events. It is safe for concurrent use and
// usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
