package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

// NewLogNotifier creates a new log notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the notification.
func (l *LogNotifier) Send(ctx context.Context, notification Notification) error {
	attrs := []any{
		"subject", notification.Subject,
		"run_id", notification.RunID,
		"workflow", notification.Workflow,
		"status", notification.Status,
	}
	if notification.Error != "" {
		attrs = append(attrs, "error", notification.Error, "permanent", notification.Permanent)
	}

	slog.InfoContext(ctx, "notification", attrs...)
	return nil
}
