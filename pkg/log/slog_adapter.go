package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter over logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", Attrs(event)...)
}

// Attrs flattens an event into slog attributes.
func Attrs(event Event) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.Transport != "" {
		attrs = append(attrs, slog.String("transport", event.Transport))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.SerialNo != "" {
		attrs = append(attrs, slog.String("serial", event.SerialNo))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.String("frame", fmt.Sprintf("% X", event.Frame.Data)),
		)
		if event.Frame.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("msg_kind", event.Message.Kind),
			slog.Int("msg_size", event.Message.Size),
		)
		if event.Message.Text != "" {
			attrs = append(attrs, slog.String("text", event.Message.Text))
		}
		for k, v := range event.Message.Fields {
			attrs = append(attrs, slog.Any(k, v))
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
	case event.Bootloader != nil:
		attrs = append(attrs, slog.String("command", event.Bootloader.CommandName))
		if event.Bootloader.Total > 0 {
			attrs = append(attrs,
				slog.Int("record", event.Bootloader.Record),
				slog.Int("total", event.Bootloader.Total),
			)
		}
		if event.Bootloader.Result != "" {
			attrs = append(attrs, slog.String("result", event.Bootloader.Result))
		}
	case event.Discovery != nil:
		attrs = append(attrs,
			slog.String("source", event.Discovery.Source),
			slog.String("name", event.Discovery.Name),
			slog.String("address", event.Discovery.Address),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
