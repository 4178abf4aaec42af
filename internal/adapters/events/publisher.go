package events

import (
	"context"
	"log/slog"

	"github.com/threadlens/entitlement-service/internal/ports"
)

// LoggingPublisher emits activation events to the structured log. Consumers
// tail the log stream; nothing downstream needs a broker for a single
// activation event per purchase.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger.With("module", "events", "layer", "adapter")}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event ports.ActivationEvent) error {
	p.logger.InfoContext(ctx, "activation event",
		"operation", "publish",
		"event_id", event.EventID.String(),
		"device_token", event.DeviceToken,
		"plan", event.Plan,
		"source", event.Source,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
