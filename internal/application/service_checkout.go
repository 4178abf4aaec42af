package application

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/threadlens/entitlement-service/internal/domain"
)

// CheckoutURL builds the hosted checkout link for this device and arms the
// burst poller. The cached subscription record is dropped first so a stale
// "not active" answer cannot mask the purchase when the user returns.
func (s *Service) CheckoutURL(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	token, err := s.DeviceToken(ctx)
	if err != nil {
		return CheckoutResponse{}, err
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return CheckoutResponse{}, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
		}
	}

	if err := s.fast.DeleteSubscriptionRecord(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to drop cached subscription before checkout",
			"operation", "checkout", "error", err)
	}
	s.ClearStatusCache()

	q := url.Values{}
	q.Set("token", token)
	if req.Plan != "" {
		q.Set("plan", req.Plan)
	}
	if req.Email != "" {
		q.Set("email", req.Email)
	}
	checkout := strings.TrimRight(s.cfg.CheckoutBaseURL, "/") + "?" + q.Encode()

	if s.watcher != nil {
		s.watcher.Arm()
	}
	s.logger.InfoContext(ctx, "checkout link issued",
		"operation", "checkout", "outcome", "armed")
	return CheckoutResponse{URL: checkout}, nil
}

// RestorePurchase looks up a subscription by email and, when found, links it
// to this device and caches it locally.
func (s *Service) RestorePurchase(ctx context.Context, email string) (RestoreResult, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return RestoreResult{}, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	token, err := s.DeviceToken(ctx)
	if err != nil {
		return RestoreResult{}, err
	}

	found, err := s.authority.Restore(ctx, email)
	if err != nil {
		return RestoreResult{}, err
	}
	if !found.Active {
		s.logger.InfoContext(ctx, "restore found no active subscription",
			"operation", "restore", "outcome", "not_found")
		return RestoreResult{Message: "No active subscription found for that email."}, nil
	}

	if err := s.authority.Link(ctx, token, email); err != nil {
		return RestoreResult{}, err
	}

	rec := domain.SubscriptionRecord{
		Active:    true,
		Plan:      found.Plan,
		RenewsAt:  found.RenewsAt,
		CheckedAt: s.nowFn(),
	}
	if err := s.fast.PutSubscriptionRecord(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to cache restored subscription",
			"operation", "restore", "error", err)
	}
	s.ClearStatusCache()
	s.publishActivation(ctx, token, found.Plan, "restore")

	s.logger.InfoContext(ctx, "subscription restored",
		"operation", "restore", "outcome", "active", "plan", found.Plan)
	return RestoreResult{Active: true, Plan: found.Plan, Message: "Subscription restored."}, nil
}
