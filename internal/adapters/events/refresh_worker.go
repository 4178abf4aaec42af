package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/threadlens/entitlement-service/internal/application"
)

// RefreshWorker drives the periodic background activation check. While the
// device is not active it asks the service to re-check once per interval;
// the service itself decides whether anything changed.
type RefreshWorker struct {
	service  *application.Service
	interval time.Duration
	logger   *slog.Logger
}

func NewRefreshWorker(service *application.Service, interval time.Duration, logger *slog.Logger) *RefreshWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshWorker{
		service:  service,
		interval: interval,
		logger:   logger.With("module", "events", "layer", "worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *RefreshWorker) Run(ctx context.Context) {
	w.logger.InfoContext(ctx, "activation refresh worker started",
		"operation", "refresh_worker", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "activation refresh worker stopped",
				"operation", "refresh_worker")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RefreshWorker) tick(ctx context.Context) {
	activated, err := w.service.RefreshActivation(ctx)
	if err != nil {
		// Transient by definition; the next tick retries.
		w.logger.DebugContext(ctx, "background activation check failed",
			"operation", "refresh_worker", "error", err)
		return
	}
	if activated {
		w.logger.InfoContext(ctx, "background check observed activation",
			"operation", "refresh_worker", "outcome", "activated")
	}
}
