package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/stockwatch"
)

// Ensure LoggingNotifier implements stockwatch.Notifier.
var _ stockwatch.Notifier = (*LoggingNotifier)(nil)

// LoggingNotifier wraps a Notifier with logging.
type LoggingNotifier struct {
	next   stockwatch.Notifier
	name   string
	logger *slog.Logger
}

// NewLoggingNotifier creates a new LoggingNotifier. The name identifies the
// channel in log records.
func NewLoggingNotifier(next stockwatch.Notifier, name string, logger *slog.Logger) *LoggingNotifier {
	return &LoggingNotifier{next: next, name: name, logger: logger}
}

// Notify logs the delivery and delegates to the wrapped notifier.
func (n *LoggingNotifier) Notify(ctx context.Context, text string) (err error) {
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		n.logger.Log(ctx, level, "notify",
			"channel", n.name,
			"chars", len([]rune(text)),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return n.next.Notify(ctx, text)
}
