package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRunKey is the redis hash key used when none is configured.
const DefaultRunKey = "aspectidx:seen"

// RedisLedger is a Ledger shared by cooperating OS processes through a redis
// hash. All ranks of one run must be configured with the same run key.
type RedisLedger struct {
	client *redis.Client
	runKey string
}

// NewRedisLedger creates a ledger backed by the given redis client.
func NewRedisLedger(client *redis.Client, runKey string) *RedisLedger {
	if runKey == "" {
		runKey = DefaultRunKey
	}
	return &RedisLedger{client: client, runKey: runKey}
}

// MarkSeen marks an image as seen for every cooperating process.
func (l *RedisLedger) MarkSeen(ctx context.Context, ref string) error {
	if err := l.client.HSet(ctx, l.runKey, ref, 1).Err(); err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}
	return nil
}

// IsSeen checks if any cooperating process has seen the image.
func (l *RedisLedger) IsSeen(ctx context.Context, ref string) (bool, error) {
	seen, err := l.client.HExists(ctx, l.runKey, ref).Result()
	if err != nil {
		return false, fmt.Errorf("IsSeen: %w", err)
	}
	return seen, nil
}

// Reset drops the run key so the next epoch starts clean.
func (l *RedisLedger) Reset(ctx context.Context) error {
	if err := l.client.Del(ctx, l.runKey).Err(); err != nil {
		return fmt.Errorf("Reset: %w", err)
	}
	return nil
}
