// Package fatigue tracks repeat-exposure counts per app/candidate pair.
// Counters are the only cross-request mutable state in the decision core:
// increments must never be lost, while reads may be slightly stale.
package fatigue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is the exposure-counter abstraction injected into the ranker.
// Implementations must provide atomic increment semantics; reads may be
// eventually consistent.
type Counter interface {
	// Increment records one exposure and returns the new count.
	Increment(ctx context.Context, appID, candidateID string) (int64, error)
	// Get returns the current exposure count; missing pairs read as zero.
	Get(ctx context.Context, appID, candidateID string) (int64, error)
	// GetBatch reads counts for many candidates at once. The returned slice
	// is parallel to candidateIDs.
	GetBatch(ctx context.Context, appID string, candidateIDs []string) ([]int64, error)
}

type memoryEntry struct {
	count   atomic.Int64
	expires time.Time
}

// MemoryCounter is an in-process Counter backed by atomic integers. Counts
// decay in whole windows: a counter past its window reads as zero and is
// replaced on the next increment.
type MemoryCounter struct {
	window  time.Duration
	entries sync.Map // key string -> *memoryEntry
}

// NewMemoryCounter returns a MemoryCounter. A zero window means counts
// never expire.
func NewMemoryCounter(window time.Duration) *MemoryCounter {
	return &MemoryCounter{window: window}
}

func key(appID, candidateID string) string {
	return appID + "\x00" + candidateID
}

func (m *MemoryCounter) entry(k string) *memoryEntry {
	for {
		v, ok := m.entries.Load(k)
		if !ok {
			fresh := &memoryEntry{}
			if m.window > 0 {
				fresh.expires = time.Now().Add(m.window)
			}
			if v, loaded := m.entries.LoadOrStore(k, fresh); loaded {
				return m.refresh(k, v.(*memoryEntry))
			}
			return fresh
		}
		return m.refresh(k, v.(*memoryEntry))
	}
}

// refresh swaps out an expired entry. Losing the race means another
// goroutine installed the fresh entry; use theirs so no increment is lost.
func (m *MemoryCounter) refresh(k string, e *memoryEntry) *memoryEntry {
	if m.window <= 0 || time.Now().Before(e.expires) {
		return e
	}
	fresh := &memoryEntry{expires: time.Now().Add(m.window)}
	if m.entries.CompareAndSwap(k, e, fresh) {
		return fresh
	}
	if v, ok := m.entries.Load(k); ok {
		return v.(*memoryEntry)
	}
	return fresh
}

func (m *MemoryCounter) Increment(ctx context.Context, appID, candidateID string) (int64, error) {
	return m.entry(key(appID, candidateID)).count.Add(1), nil
}

func (m *MemoryCounter) Get(ctx context.Context, appID, candidateID string) (int64, error) {
	k := key(appID, candidateID)
	v, ok := m.entries.Load(k)
	if !ok {
		return 0, nil
	}
	e := v.(*memoryEntry)
	if m.window > 0 && !time.Now().Before(e.expires) {
		return 0, nil
	}
	return e.count.Load(), nil
}

func (m *MemoryCounter) GetBatch(ctx context.Context, appID string, candidateIDs []string) ([]int64, error) {
	counts := make([]int64, len(candidateIDs))
	for i, id := range candidateIDs {
		n, _ := m.Get(ctx, appID, id)
		counts[i] = n
	}
	return counts, nil
}
