package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

const (
	keyDeviceIdentity = "ent:device"
	keySubscription   = "ent:subscription"
	keyTrial          = "ent:trial"
	keyModelState     = "ent:model_state"
)

// RedisStateStore implements ports.FastStore on a single Redis database.
// Records are stored as JSON; a value that fails to decode surfaces as
// domain.ErrCorruptData so the application can run its bounded reset.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) GetDeviceIdentity(ctx context.Context) (*ports.DeviceIdentity, error) {
	var id ports.DeviceIdentity
	found, err := s.getJSON(ctx, keyDeviceIdentity, &id)
	if err != nil || !found {
		return nil, err
	}
	return &id, nil
}

func (s *RedisStateStore) PutDeviceIdentity(ctx context.Context, identity ports.DeviceIdentity) error {
	return s.putJSON(ctx, keyDeviceIdentity, identity)
}

func (s *RedisStateStore) GetSubscriptionRecord(ctx context.Context) (*domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	found, err := s.getJSON(ctx, keySubscription, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStateStore) PutSubscriptionRecord(ctx context.Context, record domain.SubscriptionRecord) error {
	return s.putJSON(ctx, keySubscription, record)
}

func (s *RedisStateStore) GetTrialRecord(ctx context.Context) (*domain.TrialRecord, error) {
	var rec domain.TrialRecord
	found, err := s.getJSON(ctx, keyTrial, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStateStore) PutTrialRecord(ctx context.Context, record domain.TrialRecord) error {
	return s.putJSON(ctx, keyTrial, record)
}

func (s *RedisStateStore) GetModelState(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, keyModelState).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", keyModelState, err)
	}
	return blob, nil
}

func (s *RedisStateStore) PutModelState(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, keyModelState, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", keyModelState, err)
	}
	return nil
}

func (s *RedisStateStore) DeleteSubscriptionRecord(ctx context.Context) error {
	if err := s.client.Del(ctx, keySubscription).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", keySubscription, err)
	}
	return nil
}

func (s *RedisStateStore) DeleteCachedRecords(ctx context.Context) error {
	if err := s.client.Del(ctx, keySubscription, keyTrial).Err(); err != nil {
		return fmt.Errorf("redis del cached records: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Reset(ctx context.Context) error {
	keys := []string{keyDeviceIdentity, keySubscription, keyTrial, keyModelState}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

func (s *RedisStateStore) getJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrCorruptData, key, err)
	}
	return true, nil
}

func (s *RedisStateStore) putJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
