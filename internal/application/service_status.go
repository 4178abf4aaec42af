package application

import (
	"context"
	"errors"
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
)

// GetUnifiedStatus resolves the device's entitlement. Remote truth wins,
// local records fill the gaps, and every failure mode collapses into a
// terminal status instead of an error. Results are served from a short cache
// unless forceRefresh is set.
func (s *Service) GetUnifiedStatus(ctx context.Context, forceRefresh bool) domain.EntitlementStatus {
	if !forceRefresh {
		if st, ok := s.cachedStatusWithin(s.cfg.StatusCacheTTL); ok {
			return st
		}
	}

	token, err := s.DeviceToken(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "status derivation failed",
			"operation", "get_unified_status", "outcome", "no_identity", "error", err)
		st := domain.ErrorStatus(domain.FailureIdentity, err.Error())
		s.storeStatus(st)
		return st
	}

	// Corrupt cached records get exactly one reset-and-retry. A second
	// corruption in the same call falls through to whatever the retry
	// produced; no unbounded loops.
	var st domain.EntitlementStatus
	for attempt := 0; attempt < 2; attempt++ {
		var corrupt bool
		st, corrupt = s.deriveStatus(ctx, token)
		if !corrupt {
			break
		}
		s.logger.WarnContext(ctx, "corrupt cached record, clearing caches and retrying once",
			"operation", "get_unified_status", "attempt", attempt+1)
		if err := s.fast.DeleteCachedRecords(ctx); err != nil {
			st = domain.ErrorStatus(domain.FailureNone, "cache reset failed: "+err.Error())
			break
		}
	}
	if st.Kind == "" {
		st = domain.ErrorStatus(domain.FailureNone, "cached records unreadable after reset")
	}

	s.storeStatus(st)
	s.logger.InfoContext(ctx, "entitlement status resolved",
		"operation", "get_unified_status", "outcome", string(st.Kind))
	return st
}

// deriveStatus runs one uncached derivation pass. The bool result reports a
// corrupt cached record so the caller can reset and retry once.
func (s *Service) deriveStatus(ctx context.Context, token string) (domain.EntitlementStatus, bool) {
	now := s.nowFn()

	// Remote subscription first; an active answer overrides everything,
	// including a locally expired trial.
	sub, subErr := s.authority.CheckSubscription(ctx, token)
	if subErr == nil && sub.Active {
		rec := domain.SubscriptionRecord{Active: true, Plan: sub.Plan, RenewsAt: sub.RenewsAt, CheckedAt: now}
		if err := s.fast.PutSubscriptionRecord(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "failed to cache subscription record",
				"operation", "get_unified_status", "error", err)
		}
		return domain.SubscriptionStatus(sub.Plan, sub.RenewsAt), false
	}

	// Remote trial history next, so a trial survives local storage loss.
	remote, trialErr := s.authority.TrialStatus(ctx, token)
	if trialErr == nil && remote.HasTrial {
		rec := domain.RestoredTrialRecord(token, remote.StartedAt, remote.TrialEndsAt)
		s.persistTrialRecord(ctx, rec)
		return domain.EvaluateTrial(rec, now), false
	}

	remoteDown := subErr != nil && trialErr != nil

	// Local fallback. A cached active subscription bridges authority
	// outages until it goes stale; it never overrides an explicit remote
	// "not active".
	cachedSub, err := s.fast.GetSubscriptionRecord(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptData) {
			return domain.EntitlementStatus{}, true
		}
		s.logger.WarnContext(ctx, "cached subscription read failed",
			"operation", "get_unified_status", "error", err)
	}
	if remoteDown && cachedSub != nil && cachedSub.Active {
		if !cachedSub.Stale(now, s.cfg.SubscriptionStaleAfter) {
			return domain.SubscriptionStatus(cachedSub.Plan, cachedSub.RenewsAt), false
		}
		s.logger.WarnContext(ctx, "cached subscription too old to bridge outage",
			"operation", "get_unified_status", "checked_at", cachedSub.CheckedAt)
	}

	local, err := s.fast.GetTrialRecord(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptData) {
			return domain.EntitlementStatus{}, true
		}
		s.logger.WarnContext(ctx, "cached trial read failed",
			"operation", "get_unified_status", "error", err)
	}
	if local == nil {
		// Durable tier may still remember the trial after fast-tier loss.
		if rec, derr := s.durable.GetTrialRecord(ctx, token); derr != nil {
			s.logger.WarnContext(ctx, "durable trial lookup failed",
				"operation", "get_unified_status", "error", derr)
		} else if rec != nil {
			local = rec
			if perr := s.fast.PutTrialRecord(ctx, *rec); perr != nil {
				s.logger.WarnContext(ctx, "failed to repopulate fast tier trial record",
					"operation", "get_unified_status", "error", perr)
			}
		}
	}
	if local != nil {
		// Existing record, verified or expired: evaluate, never re-register.
		return domain.EvaluateTrial(*local, now), false
	}

	if remoteDown {
		detail := "authority unreachable: " + subErr.Error()
		return domain.ErrorStatus(domain.FailureNetwork, detail), false
	}

	return s.issueTrial(ctx, token, now), false
}

// issueTrial runs the new-device path: durable marker, remote eligibility
// pre-check, server-side registration, then and only then the local write.
func (s *Service) issueTrial(ctx context.Context, token string, now time.Time) domain.EntitlementStatus {
	if used, err := s.durable.TrialUsed(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "trial-used marker lookup failed",
			"operation", "issue_trial", "error", err)
	} else if used {
		// Marker without a record means a prior registration whose record
		// was lost everywhere; deny rather than grant a second trial.
		return domain.TrialDeniedStatus(domain.DenialDeviceAlreadyUsed, "")
	}

	allowance, err := s.authority.TrialAllowance(ctx, token)
	if err != nil {
		s.logger.WarnContext(ctx, "trial eligibility check failed",
			"operation", "issue_trial", "outcome", "network_error", "error", err)
		return domain.ErrorStatus(domain.FailureNetwork, err.Error())
	}
	if !allowance.Allowed {
		s.logger.InfoContext(ctx, "trial denied by authority",
			"operation", "issue_trial", "outcome", "denied", "reason", allowance.Reason)
		return domain.TrialDeniedStatus(allowance.Reason, allowance.Message)
	}

	endsAt := now.Add(s.cfg.TrialDuration)
	if err := s.authority.RegisterTrial(ctx, token, endsAt); err != nil {
		if errors.Is(err, domain.ErrDenied) {
			s.logger.InfoContext(ctx, "trial registration refused by authority",
				"operation", "issue_trial", "outcome", "denied", "error", err)
			return domain.TrialDeniedStatus("", "")
		}
		s.logger.WarnContext(ctx, "trial registration failed",
			"operation", "issue_trial", "outcome", "network_error", "error", err)
		return domain.ErrorStatus(domain.FailureNetwork, err.Error())
	}

	rec := domain.NewTrialRecord(token, now, endsAt)
	s.persistTrialRecord(ctx, rec)
	if err := s.durable.MarkTrialUsed(ctx, token, now); err != nil {
		s.logger.WarnContext(ctx, "failed to persist trial-used marker",
			"operation", "issue_trial", "error", err)
	}
	s.logger.InfoContext(ctx, "trial registered",
		"operation", "issue_trial", "outcome", "trialing")
	return domain.EvaluateTrial(rec, now)
}

// persistTrialRecord writes a server-confirmed record to both tiers. Write
// failures are logged, not fatal: the authority already holds the truth and
// the next derivation restores it.
func (s *Service) persistTrialRecord(ctx context.Context, rec domain.TrialRecord) {
	if err := s.fast.PutTrialRecord(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to cache trial record",
			"operation", "persist_trial", "error", err)
	}
	if err := s.durable.SaveTrialRecord(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to mirror trial record to durable tier",
			"operation", "persist_trial", "error", err)
	}
}
