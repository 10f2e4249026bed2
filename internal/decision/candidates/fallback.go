package candidates

import (
	"sync"

	"github.com/ceedads/addecision/internal/models"
)

// fallbackCache retains a small slice of recently-eligible candidates so a
// primary source outage degrades to a reduced set instead of a hard no-fill.
// The cache holds whatever the last successful generation produced, capped
// at max entries.
type fallbackCache struct {
	mu    sync.RWMutex
	cands []models.Candidate
	max   int
}

func newFallbackCache(max int) *fallbackCache {
	if max <= 0 {
		max = 10
	}
	return &fallbackCache{max: max}
}

// put replaces the cached set. Empty results do not clear a previously good
// cache; an outage right after a no-fill request should still have ads.
func (f *fallbackCache) put(cands []models.Candidate) {
	if len(cands) == 0 {
		return
	}
	if len(cands) > f.max {
		cands = cands[:f.max]
	}
	cp := make([]models.Candidate, len(cands))
	copy(cp, cands)
	f.mu.Lock()
	f.cands = cp
	f.mu.Unlock()
}

func (f *fallbackCache) get() []models.Candidate {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cp := make([]models.Candidate, len(f.cands))
	copy(cp, f.cands)
	return cp
}
