package logger

import "log/slog"

// Error returns a standard attribute for error values.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// NotificationID returns a standard attribute for notification identifiers.
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// UserID returns a standard attribute for user identifiers.
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}
