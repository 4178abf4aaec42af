package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivationEvent is emitted once per observed not-active -> active
// transition so the UI can react without polling the service itself.
type ActivationEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	DeviceToken string    `json:"device_token"`
	Plan        string    `json:"plan"`
	Source      string    `json:"source"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivationPublisher delivers activation events. Adapter-neutral so the
// application layer stays independent of the delivery mechanism.
type ActivationPublisher interface {
	Publish(ctx context.Context, event ActivationEvent) error
}

// ActivationWatcher arms the short-burst checkout poller. Arming is
// idempotent while a burst is in flight.
type ActivationWatcher interface {
	Arm()
}
