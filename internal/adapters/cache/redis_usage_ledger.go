package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/threadlens/entitlement-service/internal/domain"
)

const keyUsageLedger = "ent:usage"

// RedisUsageLedger implements ports.UsageLedger as a capped Redis list.
// LPUSH then LTRIM keeps the newest entries at the head and evicts the
// oldest past the cap.
type RedisUsageLedger struct {
	client *redis.Client
}

func NewRedisUsageLedger(client *redis.Client) *RedisUsageLedger {
	return &RedisUsageLedger{client: client}
}

func (l *RedisUsageLedger) Append(ctx context.Context, entry domain.UsageEntry, cap int) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal usage entry: %w", err)
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, keyUsageLedger, raw)
	pipe.LTrim(ctx, keyUsageLedger, 0, int64(cap)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append usage: %w", err)
	}
	return nil
}

func (l *RedisUsageLedger) Recent(ctx context.Context, limit int) ([]domain.UsageEntry, error) {
	raws, err := l.client.LRange(ctx, keyUsageLedger, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read usage: %w", err)
	}
	entries := make([]domain.UsageEntry, 0, len(raws))
	for _, raw := range raws {
		var entry domain.UsageEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Skip unreadable entries; the ledger is informational.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (l *RedisUsageLedger) Clear(ctx context.Context) error {
	if err := l.client.Del(ctx, keyUsageLedger).Err(); err != nil {
		return fmt.Errorf("redis clear usage: %w", err)
	}
	return nil
}
