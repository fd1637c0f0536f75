package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldService  = "service"
	FieldUserID   = "user_id"
	FieldKey      = "idempotency_key"
	FieldSink     = "sink"
	FieldReason   = "reason"
	FieldAttempts = "attempts"
	FieldError    = "error"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// UserID returns a slog attribute for the user ID.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// Key returns a slog attribute for the idempotency key.
func Key(key string) slog.Attr {
	return slog.String(FieldKey, key)
}

// Sink returns a slog attribute for the sink name.
func Sink(name string) slog.Attr {
	return slog.String(FieldSink, name)
}

// Reason returns a slog attribute for a rejection or failure reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
