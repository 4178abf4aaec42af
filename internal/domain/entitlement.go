package domain

import (
	"fmt"
	"strings"
	"time"
)

// StatusKind is the resolved entitlement variant. Exactly one kind holds at
// a time; statuses are always derived through the constructors below, never
// assembled by hand elsewhere.
type StatusKind string

const (
	KindSubscription StatusKind = "subscription"
	KindTrialing     StatusKind = "trialing"
	KindTrialExpired StatusKind = "trial_expired"
	KindTrialDenied  StatusKind = "trial_denied"
	KindError        StatusKind = "error"
	KindUnknown      StatusKind = "unknown"
)

// FailureClass distinguishes soft failures (network, retryable) from hard
// ones (missing identity) when Kind is KindError. The usage gate fails open
// only for FailureNetwork during new-trial issuance.
type FailureClass string

const (
	FailureNone     FailureClass = ""
	FailureNetwork  FailureClass = "network"
	FailureIdentity FailureClass = "identity"
)

const (
	PlanTrial        = "trial"
	PlanTrialExpired = "trial_expired"
	PlanTrialDenied  = "trial_denied"
	PlanError        = "error"
)

// Trial denial reasons as reported by the authority's /trial/check endpoint.
const (
	DenialDeviceAlreadyUsed    = "device_already_used"
	DenialNetworkLimitExceeded = "network_limit_exceeded"
)

// TrialDuration is the fixed trial length granted on confirmed registration.
const TrialDuration = 72 * time.Hour

// EntitlementStatus is the derived access decision for a device. It is never
// persisted; only the records feeding it are.
type EntitlementStatus struct {
	Kind        StatusKind   `json:"kind"`
	Active      bool         `json:"active"`
	IsTrialing  bool         `json:"is_trialing"`
	Plan        string       `json:"plan"`
	TrialEndsAt *time.Time   `json:"trial_ends_at,omitempty"`
	RenewsAt    *time.Time   `json:"renews_at,omitempty"`
	Message     string       `json:"message"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	Failure     FailureClass `json:"-"`
}

// SubscriptionRecord is the locally cached view of the authority's paid
// subscription state. Read-through: refreshed on every successful remote
// check and considered stale after CheckedAt + window.
type SubscriptionRecord struct {
	Active    bool       `json:"active"`
	Plan      string     `json:"plan"`
	RenewsAt  *time.Time `json:"renews_at,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}

func (r SubscriptionRecord) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(r.CheckedAt) >= window
}

// TrialRecord is the local claim of trial eligibility. Timestamps are kept
// as RFC 3339 text so a corrupted value is detectable at evaluation time
// instead of silently re-seeding a fresh trial. A record is only ever
// written after the authority confirmed registration (ServerVerified) or
// reported an existing trial for this device (ServerRestored).
type TrialRecord struct {
	DeviceToken    string `json:"device_token"`
	StartedAt      string `json:"started_at"`
	TrialEndsAt    string `json:"trial_ends_at"`
	ServerVerified bool   `json:"server_verified"`
	ServerRestored bool   `json:"server_restored,omitempty"`
}

// EndsAt parses the stored trial end. Unparseable values surface as
// ErrCorruptData so callers treat the trial as expired rather than resetting
// history.
func (r TrialRecord) EndsAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(r.TrialEndsAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: trial end %q", ErrCorruptData, r.TrialEndsAt)
	}
	return t, nil
}

// NewTrialRecord builds a server-verified record for a trial the authority
// just confirmed.
func NewTrialRecord(deviceToken string, startedAt, endsAt time.Time) TrialRecord {
	return TrialRecord{
		DeviceToken:    deviceToken,
		StartedAt:      startedAt.UTC().Format(time.RFC3339),
		TrialEndsAt:    endsAt.UTC().Format(time.RFC3339),
		ServerVerified: true,
	}
}

// RestoredTrialRecord rebuilds a local record from the authority's
// /trial/status response after local storage loss.
func RestoredTrialRecord(deviceToken, startedAt, endsAt string) TrialRecord {
	return TrialRecord{
		DeviceToken:    deviceToken,
		StartedAt:      startedAt,
		TrialEndsAt:    endsAt,
		ServerVerified: true,
		ServerRestored: true,
	}
}

// EvaluateTrial derives the status for an existing trial record. The trial
// window is closed-open: a record ending exactly at now is already expired.
func EvaluateTrial(record TrialRecord, now time.Time) EntitlementStatus {
	endsAt, err := record.EndsAt()
	if err != nil {
		return EntitlementStatus{
			Kind:        KindTrialExpired,
			Plan:        PlanTrialExpired,
			Message:     "Your free trial has ended. Upgrade to keep summarizing threads.",
			ErrorDetail: err.Error(),
		}
	}
	if now.Before(endsAt) {
		return EntitlementStatus{
			Kind:        KindTrialing,
			IsTrialing:  true,
			Plan:        PlanTrial,
			TrialEndsAt: &endsAt,
			Message:     "Free trial active until " + endsAt.UTC().Format("Jan 2, 2006") + ".",
		}
	}
	return EntitlementStatus{
		Kind:        KindTrialExpired,
		Plan:        PlanTrialExpired,
		TrialEndsAt: &endsAt,
		Message:     "Your free trial has ended. Upgrade to keep summarizing threads.",
	}
}

// SubscriptionStatus derives the active-subscription variant. Remote
// "active" always wins over any local trial state.
func SubscriptionStatus(plan string, renewsAt *time.Time) EntitlementStatus {
	return EntitlementStatus{
		Kind:     KindSubscription,
		Active:   true,
		Plan:     plan,
		RenewsAt: renewsAt,
		Message:  "Subscription active.",
	}
}

// TrialDeniedStatus derives the terminal denial variant with a
// reason-specific message. Nothing is persisted for denials.
func TrialDeniedStatus(reason, serverMessage string) EntitlementStatus {
	msg := strings.TrimSpace(serverMessage)
	if msg == "" {
		switch reason {
		case DenialDeviceAlreadyUsed:
			msg = "A free trial was already used on this device. Upgrade to continue."
		case DenialNetworkLimitExceeded:
			msg = "Trial limit reached for your network. Upgrade to continue."
		default:
			msg = "A free trial is not available for this device. Upgrade to continue."
		}
	}
	return EntitlementStatus{
		Kind:        KindTrialDenied,
		Plan:        PlanTrialDenied,
		Message:     msg,
		ErrorDetail: reason,
	}
}

// ErrorStatus derives the soft-failure variant. Retryable, unlike denial.
func ErrorStatus(class FailureClass, detail string) EntitlementStatus {
	return EntitlementStatus{
		Kind:        KindError,
		Plan:        PlanError,
		Message:     "Could not verify your subscription. Please try again.",
		ErrorDetail: detail,
		Failure:     class,
	}
}
