package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("attempt_id", event.AttemptID),
		slog.String("kind", event.Kind.String()),
		slog.Int("retry_count", event.RetryCount),
		slog.Int("max_retries", event.MaxRetries),
	}

	if event.SSID != "" {
		attrs = append(attrs, slog.String("ssid", event.SSID))
	}
	if event.Outcome != "" {
		attrs = append(attrs, slog.String("outcome", event.Outcome))
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "join", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
