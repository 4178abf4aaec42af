package ports

import (
	"context"
	"time"
)

// SubscriptionCheck mirrors GET /check.
type SubscriptionCheck struct {
	Active   bool       `json:"active"`
	Plan     string     `json:"plan,omitempty"`
	RenewsAt *time.Time `json:"renewsAt,omitempty"`
}

// TrialAllowance mirrors POST /trial/check. Allowed=false is an in-band
// denial, not a transport failure.
type TrialAllowance struct {
	Allowed bool       `json:"allowed"`
	Reason  string     `json:"reason,omitempty"`
	UsedAt  *time.Time `json:"usedAt,omitempty"`
	Message string     `json:"message,omitempty"`
}

// TrialState mirrors POST /trial/status; timestamps stay textual because the
// local record stores them as text.
type TrialState struct {
	HasTrial    bool   `json:"hasTrial"`
	TrialEndsAt string `json:"trialEndsAt,omitempty"`
	StartedAt   string `json:"startedAt,omitempty"`
}

// RestoreResult mirrors GET /restore.
type RestoreResult struct {
	Active   bool       `json:"active"`
	Plan     string     `json:"plan,omitempty"`
	RenewsAt *time.Time `json:"renewsAt,omitempty"`
}

// ActivationNotice mirrors GET /notifications, the lightweight
// pending-activation endpoint polled after checkout.
type ActivationNotice struct {
	HasNotification bool
	Subscription    *SubscriptionCheck
}

// AuthorityClient is the HTTP contract with the remote trial/subscription
// service. Implementations fail with domain.ErrNetwork after exhausting
// retries and with domain.ErrDenied on explicit refusals; callers persist
// results themselves.
type AuthorityClient interface {
	CheckSubscription(ctx context.Context, deviceToken string) (SubscriptionCheck, error)
	TrialAllowance(ctx context.Context, deviceToken string) (TrialAllowance, error)
	RegisterTrial(ctx context.Context, deviceToken string, trialEndsAt time.Time) error
	TrialStatus(ctx context.Context, deviceToken string) (TrialState, error)
	Restore(ctx context.Context, email string) (RestoreResult, error)
	Link(ctx context.Context, deviceToken, email string) error
	Notifications(ctx context.Context, deviceToken string) (ActivationNotice, error)
	// TrackAnalytics is fire-and-forget: one attempt, failures swallowed.
	TrackAnalytics(ctx context.Context, deviceToken, action string, metadata map[string]string)
}
