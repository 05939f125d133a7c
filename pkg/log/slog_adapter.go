package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see bus traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("port_id", event.PortID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.DeviceUID != "" {
		attrs = append(attrs, slog.String("device_uid", event.DeviceUID))
	}

	// Add type-specific attributes
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.Uint64("tn", uint64(event.Message.TN)),
			slog.Uint64("cc", uint64(event.Message.CC)),
			slog.Uint64("pid", uint64(event.Message.PID)),
		)
		if event.Message.ResponseType != nil {
			attrs = append(attrs, slog.Uint64("response_type", uint64(*event.Message.ResponseType)))
		}
		if event.Message.NackReason != nil {
			attrs = append(attrs, slog.Uint64("nack_reason", uint64(*event.Message.NackReason)))
		}
		if event.Message.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *event.Message.ProcessingTime))
		}
	case event.Discovery != nil:
		attrs = append(attrs, slog.String("outcome", event.Discovery.Outcome.String()))
		if event.Discovery.Found != "" {
			attrs = append(attrs, slog.String("found", event.Discovery.Found))
		}
		if event.Discovery.Lower != "" {
			attrs = append(attrs,
				slog.String("lower", event.Discovery.Lower),
				slog.String("upper", event.Discovery.Upper),
			)
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "rdm", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
