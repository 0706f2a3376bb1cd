package service

import (
	"context"
	"log/slog"
)

// NotificationKind classifies a message for the delivery channel.
type NotificationKind string

const (
	KindAssignment NotificationKind = "assignment"
	KindRecurrence NotificationKind = "recurrence"
	KindDigest     NotificationKind = "digest"
)

// Notifier delivers a message to a user. Callers treat delivery as best effort.
type Notifier interface {
	Notify(ctx context.Context, userID uint, message string, kind NotificationKind, relatedTaskID *uint) error
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, userID uint, message string, kind NotificationKind, relatedTaskID *uint) error {
	attrs := []any{"user_id", userID, "kind", kind, "message", message}
	if relatedTaskID != nil {
		attrs = append(attrs, "task_id", *relatedTaskID)
	}
	n.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
