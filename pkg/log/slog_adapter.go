package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes traffic events to an slog.Logger.
// Useful during development to see SDK traffic on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given
// slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Transport != "" {
		attrs = append(attrs, slog.String("transport", event.Transport))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.Interface != "" {
		attrs = append(attrs, slog.String("interface", event.Interface))
	}
	if event.Name != "" {
		attrs = append(attrs, slog.String("name", event.Name))
	}
	if event.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", event.CorrelationID))
	}
	if event.Size > 0 {
		attrs = append(attrs, slog.Int("size", event.Size))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}
	if event.Err != "" {
		attrs = append(attrs, slog.String("error", event.Err))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "traffic", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
