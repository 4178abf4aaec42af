package ports

import (
	"context"
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
)

// DeviceIdentity is the anonymous per-installation identifier. Created once,
// never mutated, deleted only by explicit local reset.
type DeviceIdentity struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// FastStore is the fast local tier (Redis). It holds the device token, the
// read-through subscription/trial caches, the model download-state blob and
// nothing the authority has not confirmed.
// Nil-pointer returns with nil error mean "absent".
type FastStore interface {
	GetDeviceIdentity(ctx context.Context) (*DeviceIdentity, error)
	PutDeviceIdentity(ctx context.Context, identity DeviceIdentity) error

	GetSubscriptionRecord(ctx context.Context) (*domain.SubscriptionRecord, error)
	PutSubscriptionRecord(ctx context.Context, record domain.SubscriptionRecord) error

	GetTrialRecord(ctx context.Context) (*domain.TrialRecord, error)
	PutTrialRecord(ctx context.Context, record domain.TrialRecord) error

	GetModelState(ctx context.Context) ([]byte, error)
	PutModelState(ctx context.Context, blob []byte) error

	// DeleteSubscriptionRecord drops only the cached subscription. Checkout
	// uses it so a stale inactive record cannot mask the purchase.
	DeleteSubscriptionRecord(ctx context.Context) error
	// DeleteCachedRecords clears the subscription/trial caches only. Used by
	// the bounded reset-and-retry path when a cached record fails to parse.
	DeleteCachedRecords(ctx context.Context) error
	// Reset wipes every key including the device identity. Explicit
	// data-reset is the only caller.
	Reset(ctx context.Context) error
}

// UsageLedger is the bounded FIFO log of billable actions.
type UsageLedger interface {
	Append(ctx context.Context, entry domain.UsageEntry, cap int) error
	Recent(ctx context.Context, limit int) ([]domain.UsageEntry, error)
	Clear(ctx context.Context) error
}

// DurableStore is the durable/sync tier (Postgres). It mirrors the device
// token, keeps the trial-first-used marker and server-confirmed trial
// history so state survives fast-tier loss. When unreachable the service
// degrades silently to the fast tier; callers treat errors here as
// recoverable, not fatal.
type DurableStore interface {
	GetDeviceIdentity(ctx context.Context) (*DeviceIdentity, error)
	PutDeviceIdentity(ctx context.Context, identity DeviceIdentity) error

	MarkTrialUsed(ctx context.Context, deviceToken string, at time.Time) error
	TrialUsed(ctx context.Context, deviceToken string) (bool, error)

	SaveTrialRecord(ctx context.Context, record domain.TrialRecord) error
	GetTrialRecord(ctx context.Context, deviceToken string) (*domain.TrialRecord, error)

	Reset(ctx context.Context, deviceToken string) error
}
