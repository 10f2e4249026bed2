package fatigue

import (
	"context"
	"time"

	"github.com/ceedads/addecision/internal/db"
)

// RedisCounter is a Counter backed by Redis, shared across server instances.
// Redis INCR gives the atomic increment discipline; MGET reads may lag
// concurrent increments, which is acceptable for scoring.
type RedisCounter struct {
	store  *db.RedisStore
	window time.Duration
}

// NewRedisCounter wraps a RedisStore with the configured fatigue window.
func NewRedisCounter(store *db.RedisStore, window time.Duration) *RedisCounter {
	return &RedisCounter{store: store, window: window}
}

func (r *RedisCounter) Increment(ctx context.Context, appID, candidateID string) (int64, error) {
	return r.store.IncrementExposure(ctx, appID, candidateID, r.window)
}

func (r *RedisCounter) Get(ctx context.Context, appID, candidateID string) (int64, error) {
	return r.store.GetExposure(ctx, appID, candidateID)
}

func (r *RedisCounter) GetBatch(ctx context.Context, appID string, candidateIDs []string) ([]int64, error) {
	return r.store.GetExposures(ctx, appID, candidateIDs)
}
