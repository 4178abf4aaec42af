package http

import (
	"context"
	"log/slog"
	"net/http"
)

// requestLogger binds the adapter fields plus the request id, so every line
// emitted while serving one request correlates in the log stream.
func requestLogger(ctx context.Context) *slog.Logger {
	return slog.Default().With(
		"module", "api",
		"layer", "adapter",
		"request_id", requestIDFromContext(ctx),
	)
}

// logOperationFailure records a failed endpoint call. 5xx means we broke,
// anything else means the caller did; the level follows that split.
func logOperationFailure(ctx context.Context, operation string, statusCode int, code string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	if statusCode >= http.StatusInternalServerError {
		requestLogger(ctx).ErrorContext(ctx, "request failed", fields...)
		return
	}
	requestLogger(ctx).WarnContext(ctx, "request failed", fields...)
}
