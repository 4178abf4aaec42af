package application

import (
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
)

// Gate reasons. This taxonomy is the usage-gate policy surface; the
// reconciler itself never produces these strings.
const (
	ReasonSubscription  = "subscription"
	ReasonTrial         = "trial"
	ReasonTrialFallback = "trial_fallback"
	ReasonTrialDenied   = "trial_denied"
	ReasonTrialExpired  = "trial_expired"
	ReasonError         = "error"
)

// GateDecision is the allow/deny outcome for one billable action.
type GateDecision struct {
	CanUse bool                     `json:"can_use"`
	Reason string                   `json:"reason"`
	Status domain.EntitlementStatus `json:"status"`
}

type CheckoutRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type RestoreRequest struct {
	Email string `json:"email"`
}

type RestoreResult struct {
	Active  bool   `json:"active"`
	Plan    string `json:"plan,omitempty"`
	Message string `json:"message"`
}

type UsageRequest struct {
	Action   string            `json:"action"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DeviceInfo struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
