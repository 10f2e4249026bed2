package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore wraps a redis client used for cross-instance exposure counters.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	zap.L().Info("connected to redis", zap.String("addr", addr))
	return rs, nil
}

// exposureKey scopes fatigue counters to one app/candidate pair. The app is
// the audience segment the counter tracks repeat exposure for.
func exposureKey(appID, candidateID string) string {
	return fmt.Sprintf("fatigue:%s:%s", appID, candidateID)
}

// IncrementExposure atomically increments the exposure counter for the
// app/candidate pair. The window TTL is set on first increment only, so the
// counter decays as a whole rather than sliding. Returns the new count.
func (r *RedisStore) IncrementExposure(ctx context.Context, appID, candidateID string, window time.Duration) (int64, error) {
	key := exposureKey(appID, candidateID)
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 && window > 0 {
		r.Client.Expire(ctx, key, window)
	}
	return val, nil
}

// GetExposure returns the current exposure count for the app/candidate pair.
// A missing key reads as zero.
func (r *RedisStore) GetExposure(ctx context.Context, appID, candidateID string) (int64, error) {
	val, err := r.Client.Get(ctx, exposureKey(appID, candidateID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// GetExposures batch-reads exposure counts for many candidates in one MGET.
// Missing keys read as zero. The returned slice is parallel to candidateIDs.
func (r *RedisStore) GetExposures(ctx context.Context, appID string, candidateIDs []string) ([]int64, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(candidateIDs))
	for i, id := range candidateIDs {
		keys[i] = exposureKey(appID, id)
	}
	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	counts := make([]int64, len(candidateIDs))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			var n int64
			if _, err := fmt.Sscan(s, &n); err == nil {
				counts[i] = n
			}
		}
	}
	return counts, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
