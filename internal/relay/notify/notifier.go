// Package notify provides workflow notification sinks.
package notify

import (
	"context"
	"log"

	"relaycloud/internal/relay/application"
)

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements application.Notifier.
func (n *LogNotifier) Notify(_ context.Context, notification application.Notification) {
	if n == nil || n.logger == nil {
		return
	}
	if notification.Device != "" {
		n.logger.Printf("notify %s device=%q: %s", notification.Level, notification.Device, notification.Message)
		return
	}
	n.logger.Printf("notify %s: %s", notification.Level, notification.Message)
}

// MultiNotifier dispatches notifications to multiple sinks.
type MultiNotifier struct {
	notifiers []application.Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...application.Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the notification to all sinks.
func (m *MultiNotifier) Notify(ctx context.Context, notification application.Notification) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, notification)
		}
	}
}
