package fatigue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ceedads/addecision/internal/db"
)

func newTestRedisCounter(t *testing.T, window time.Duration) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := &db.RedisStore{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(store.Close)
	return NewRedisCounter(store, window), mr
}

func TestRedisCounterIncrementAndGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCounter(t, time.Minute)

	n, err := c.Increment(ctx, "app1", "ad1")
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if n != 1 {
		t.Fatalf("first increment = %d, want 1", n)
	}
	if n, _ = c.Increment(ctx, "app1", "ad1"); n != 2 {
		t.Fatalf("second increment = %d, want 2", n)
	}

	n, err = c.Get(ctx, "app1", "ad1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n != 2 {
		t.Errorf("Get = %d, want 2", n)
	}

	// A pair never incremented reads as zero, not an error.
	n, err = c.Get(ctx, "app1", "ad9")
	if err != nil || n != 0 {
		t.Errorf("Get missing pair = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRedisCounterWindowExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCounter(t, time.Minute)

	_, _ = c.Increment(ctx, "app1", "ad1")
	_, _ = c.Increment(ctx, "app1", "ad1")

	mr.FastForward(2 * time.Minute)

	n, err := c.Get(ctx, "app1", "ad1")
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if n != 0 {
		t.Errorf("count after window = %d, want 0", n)
	}

	// The next increment opens a fresh window.
	n, err = c.Increment(ctx, "app1", "ad1")
	if err != nil {
		t.Fatalf("Increment after expiry: %v", err)
	}
	if n != 1 {
		t.Errorf("count after re-increment = %d, want 1", n)
	}
}

func TestRedisCounterGetBatch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCounter(t, time.Minute)

	_, _ = c.Increment(ctx, "app1", "ad1")
	_, _ = c.Increment(ctx, "app1", "ad3")
	_, _ = c.Increment(ctx, "app1", "ad3")
	_, _ = c.Increment(ctx, "app2", "ad1")

	counts, err := c.GetBatch(ctx, "app1", []string{"ad1", "ad2", "ad3"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	want := []int64{1, 0, 2}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts[%d] = %d, want %d", i, counts[i], want[i])
		}
	}
}
