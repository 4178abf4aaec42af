package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

// RefreshActivation is the periodic background check. It is a no-op while
// the device is already active; otherwise it asks the authority once and,
// on a not-active -> active transition, caches the subscription, drops the
// status cache and emits one activation event. Returns whether a transition
// happened.
func (s *Service) RefreshActivation(ctx context.Context) (bool, error) {
	if st, ok := s.peekCachedStatus(); ok && st.Active {
		return false, nil
	}
	if rec, err := s.fast.GetSubscriptionRecord(ctx); err == nil && rec != nil && rec.Active {
		return false, nil
	}

	token, err := s.DeviceToken(ctx)
	if err != nil {
		return false, err
	}
	sub, err := s.authority.CheckSubscription(ctx, token)
	if err != nil {
		return false, err
	}
	if !sub.Active {
		return false, nil
	}

	s.applyActivation(ctx, token, sub, "background_check")
	return true, nil
}

// ConsumeActivationNotice drains the pending-activation endpoint polled in
// short bursts after checkout. Returns true once a notice was applied so
// the poller can stop early.
func (s *Service) ConsumeActivationNotice(ctx context.Context) (bool, error) {
	token, err := s.DeviceToken(ctx)
	if err != nil {
		return false, err
	}
	notice, err := s.authority.Notifications(ctx, token)
	if err != nil {
		return false, err
	}
	if !notice.HasNotification || notice.Subscription == nil || !notice.Subscription.Active {
		return false, nil
	}

	s.applyActivation(ctx, token, *notice.Subscription, "checkout_poll")
	return true, nil
}

func (s *Service) applyActivation(ctx context.Context, token string, sub ports.SubscriptionCheck, source string) {
	rec := domain.SubscriptionRecord{
		Active:    true,
		Plan:      sub.Plan,
		RenewsAt:  sub.RenewsAt,
		CheckedAt: s.nowFn(),
	}
	if err := s.fast.PutSubscriptionRecord(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to cache activated subscription",
			"operation", "activation", "error", err)
	}
	s.ClearStatusCache()
	s.publishActivation(ctx, token, sub.Plan, source)
	s.logger.InfoContext(ctx, "subscription activated",
		"operation", "activation", "outcome", "active", "source", source)
}

func (s *Service) publishActivation(ctx context.Context, token, plan, source string) {
	if s.publisher == nil {
		return
	}
	event := ports.ActivationEvent{
		EventID:     uuid.New(),
		DeviceToken: token,
		Plan:        plan,
		Source:      source,
		OccurredAt:  s.nowFn(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish activation event",
			"operation", "activation", "error", err)
	}
}
