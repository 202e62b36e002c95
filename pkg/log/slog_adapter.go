package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at debug level.
// Useful for watching engine traffic on the console during development.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Datagram != nil:
		attrs = append(attrs,
			slog.Int("size", event.Datagram.Size),
			slog.Bool("truncated", event.Datagram.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("type", event.Message.Type),
			slog.String("code", event.Message.Code),
			slog.Uint64("mid", uint64(event.Message.MessageID)),
		)
		if event.Message.Token != "" {
			attrs = append(attrs, slog.String("token", event.Message.Token))
		}
		if event.Message.Observe != nil {
			attrs = append(attrs, slog.Uint64("observe", uint64(*event.Message.Observe)))
		}
		if event.Message.Path != "" {
			attrs = append(attrs, slog.String("path", event.Message.Path))
		}
	case event.Observation != nil:
		attrs = append(attrs,
			slog.String("key", event.Observation.Key),
			slog.String("transition", event.Observation.Transition),
		)
		if event.Observation.Sequence != nil {
			attrs = append(attrs, slog.Uint64("seq", uint64(*event.Observation.Sequence)))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
