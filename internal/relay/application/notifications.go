package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationLevel classifies a transient notification.
type NotificationLevel string

const (
	// NotificationSuccess marks a completed action.
	NotificationSuccess NotificationLevel = "success"
	// NotificationError marks a failed action.
	NotificationError NotificationLevel = "error"
)

// Notification is a transient user-visible message raised by a workflow
// after a mutating action, naming the affected device where applicable.
type Notification struct {
	ID         string            `json:"id"`
	Level      NotificationLevel `json:"level"`
	Device     string            `json:"device,omitempty"`
	Message    string            `json:"message"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier receives workflow notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification)
}

func successNotification(device, message string) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Level:      NotificationSuccess,
		Device:     device,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

func errorNotification(device, message string) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Level:      NotificationError,
		Device:     device,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}
