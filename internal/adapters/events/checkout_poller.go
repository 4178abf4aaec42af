package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/threadlens/entitlement-service/internal/application"
)

// CheckoutPoller is the short-burst watcher armed when the user heads to
// checkout. It polls the pending-activation endpoint on a tight interval
// until a notice lands or the deadline passes, then goes idle. Arming while
// a burst is running is a no-op; re-arming after one finished starts a
// fresh burst.
type CheckoutPoller struct {
	service  *application.Service
	interval time.Duration
	deadline time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	armed   bool
	baseCtx context.Context
}

func NewCheckoutPoller(service *application.Service, interval, deadline time.Duration, logger *slog.Logger) *CheckoutPoller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if deadline <= 0 {
		deadline = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutPoller{
		service:  service,
		interval: interval,
		deadline: deadline,
		logger:   logger.With("module", "events", "layer", "worker"),
		baseCtx:  context.Background(),
	}
}

// Bind sets the lifecycle context bursts inherit from; bootstrap calls it
// once before serving so cancelling the process stops in-flight bursts.
func (p *CheckoutPoller) Bind(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()
}

// Arm starts a polling burst unless one is already running.
func (p *CheckoutPoller) Arm() {
	p.mu.Lock()
	if p.armed {
		p.mu.Unlock()
		return
	}
	p.armed = true
	ctx := p.baseCtx
	p.mu.Unlock()

	go p.burst(ctx)
}

func (p *CheckoutPoller) disarm() {
	p.mu.Lock()
	p.armed = false
	p.mu.Unlock()
}

func (p *CheckoutPoller) burst(ctx context.Context) {
	defer p.disarm()

	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	p.logger.InfoContext(ctx, "checkout polling burst started",
		"operation", "checkout_poller", "interval", p.interval.String(), "deadline", p.deadline.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "checkout polling burst ended without activation",
				"operation", "checkout_poller", "outcome", "deadline")
			return
		case <-ticker.C:
			applied, err := p.service.ConsumeActivationNotice(ctx)
			if err != nil {
				p.logger.DebugContext(ctx, "activation poll failed",
					"operation", "checkout_poller", "error", err)
				continue
			}
			if applied {
				p.logger.InfoContext(ctx, "checkout polling burst observed activation",
					"operation", "checkout_poller", "outcome", "activated")
				return
			}
		}
	}
}
