package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

// DeviceToken returns the stable anonymous token for this installation,
// creating it on first use. Creation runs under a single-flight guard so
// concurrent first calls observe the same token.
func (s *Service) DeviceToken(ctx context.Context) (string, error) {
	id, err := s.deviceIdentity(ctx)
	if err != nil {
		return "", err
	}
	return id.Token, nil
}

// Device returns the full identity for the debug surface.
func (s *Service) Device(ctx context.Context) (DeviceInfo, error) {
	id, err := s.deviceIdentity(ctx)
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{Token: id.Token, CreatedAt: id.CreatedAt}, nil
}

func (s *Service) deviceIdentity(ctx context.Context) (ports.DeviceIdentity, error) {
	v, err, _ := s.identityFlight.Do("device_identity", func() (any, error) {
		return s.resolveDeviceIdentity(ctx)
	})
	if err != nil {
		return ports.DeviceIdentity{}, fmt.Errorf("%w: %v", domain.ErrNoIdentity, err)
	}
	return v.(ports.DeviceIdentity), nil
}

// resolveDeviceIdentity reads fast tier, then durable tier, then mints a new
// identity. The durable tier is what lets a token survive fast-tier loss; a
// durable outage degrades to fast-tier-only and is logged, never fatal.
func (s *Service) resolveDeviceIdentity(ctx context.Context) (ports.DeviceIdentity, error) {
	if id, err := s.fast.GetDeviceIdentity(ctx); err != nil {
		return ports.DeviceIdentity{}, err
	} else if id != nil {
		return *id, nil
	}

	if id, err := s.durable.GetDeviceIdentity(ctx); err != nil {
		s.logger.WarnContext(ctx, "durable identity lookup failed, continuing with fast tier only",
			"operation", "device_identity", "error", err)
	} else if id != nil {
		if perr := s.fast.PutDeviceIdentity(ctx, *id); perr != nil {
			s.logger.WarnContext(ctx, "failed to repopulate fast tier identity",
				"operation", "device_identity", "error", perr)
		}
		return *id, nil
	}

	now := s.nowFn()
	id := ports.DeviceIdentity{Token: newDeviceToken(now), CreatedAt: now}
	if err := s.fast.PutDeviceIdentity(ctx, id); err != nil {
		return ports.DeviceIdentity{}, err
	}
	if err := s.durable.PutDeviceIdentity(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to mirror identity to durable tier",
			"operation", "device_identity", "error", err)
	}
	s.logger.InfoContext(ctx, "device identity created",
		"operation", "device_identity", "outcome", "created")
	return id, nil
}

// newDeviceToken combines a millisecond timestamp with two independent
// random components. Collisions across devices are what the authority keys
// trials on, so the token is deliberately wide.
func newDeviceToken(now time.Time) string {
	return "dev_" + strconv.FormatInt(now.UnixMilli(), 36) +
		"_" + randomHex(8) + "_" + randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; fall back to
		// a time-derived value rather than returning an empty component.
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
