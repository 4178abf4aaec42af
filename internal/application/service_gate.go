package application

import (
	"context"

	"github.com/threadlens/entitlement-service/internal/domain"
)

// CanUse maps the current status onto an allow/deny decision for one
// billable action. Policy lives entirely here:
//
//	subscription, trialing        -> allow
//	trial expired, trial denied   -> deny (terminal)
//	network failure, no trial yet -> allow (trial_fallback)
//	any other failure             -> deny
//
// The fallback exists so a flaky first launch never locks a new user out;
// it cannot resurrect an expired or denied trial because those derive from
// records, not from failures.
func (s *Service) CanUse(ctx context.Context) GateDecision {
	st := s.GetUnifiedStatus(ctx, false)

	var d GateDecision
	switch st.Kind {
	case domain.KindSubscription:
		d = GateDecision{CanUse: true, Reason: ReasonSubscription, Status: st}
	case domain.KindTrialing:
		d = GateDecision{CanUse: true, Reason: ReasonTrial, Status: st}
	case domain.KindTrialExpired:
		d = GateDecision{Reason: ReasonTrialExpired, Status: st}
	case domain.KindTrialDenied:
		d = GateDecision{Reason: ReasonTrialDenied, Status: st}
	case domain.KindError:
		if st.Failure == domain.FailureNetwork {
			d = GateDecision{CanUse: true, Reason: ReasonTrialFallback, Status: st}
		} else {
			d = GateDecision{Reason: ReasonError, Status: st}
		}
	default:
		d = GateDecision{Reason: ReasonError, Status: st}
	}

	s.logger.InfoContext(ctx, "usage gate evaluated",
		"operation", "can_use", "outcome", d.Reason, "allowed", d.CanUse)
	return d
}
