package models

import (
	"errors"
	"sync"
)

// Advertiser owns candidates. Pausing an advertiser pulls all of its
// candidates out of rotation without touching the individual ads.
type Advertiser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// InventoryStore provides thread-safe, read-mostly access to the serving
// inventory (apps, advertisers, candidates). Reads during a decision run see
// a consistent snapshot; reloads swap data atomically.
type InventoryStore interface {
	GetApp(id string) *App
	GetAdvertiser(id string) *Advertiser
	GetCandidate(id string) *Candidate
	// Candidates returns a copy of all candidates whose advertiser is
	// active. Callers may filter the slice freely.
	Candidates() []Candidate
	ReloadAll(apps []App, advertisers []Advertiser, candidates []Candidate) error
}

// ErrNilInventory is returned when inventory data is reloaded with nil slices.
var ErrNilInventory = errors.New("inventory reload with nil data")

// InMemoryInventory is the default InventoryStore. All data lives in maps
// guarded by a single RWMutex; ReloadAll replaces everything under one write
// lock so concurrent decision runs never see a partial reload.
type InMemoryInventory struct {
	mu          sync.RWMutex
	apps        map[string]App
	advertisers map[string]Advertiser
	candidates  map[string]Candidate
	// ordered keeps candidate IDs in load order for stable iteration.
	ordered []string
}

// NewInMemoryInventory returns an empty inventory store.
func NewInMemoryInventory() *InMemoryInventory {
	return &InMemoryInventory{
		apps:        make(map[string]App),
		advertisers: make(map[string]Advertiser),
		candidates:  make(map[string]Candidate),
	}
}

func (s *InMemoryInventory) GetApp(id string) *App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[id]; ok {
		return &a
	}
	return nil
}

func (s *InMemoryInventory) GetAdvertiser(id string) *Advertiser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.advertisers[id]; ok {
		return &a
	}
	return nil
}

func (s *InMemoryInventory) GetCandidate(id string) *Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.candidates[id]; ok {
		return &c
	}
	return nil
}

// Candidates returns active-advertiser candidates in load order.
func (s *InMemoryInventory) Candidates() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidate, 0, len(s.ordered))
	for _, id := range s.ordered {
		c := s.candidates[id]
		if adv, ok := s.advertisers[c.AdvertiserID]; ok && !adv.Active {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ReloadAll atomically replaces all inventory data.
func (s *InMemoryInventory) ReloadAll(apps []App, advertisers []Advertiser, candidates []Candidate) error {
	if apps == nil || advertisers == nil || candidates == nil {
		return ErrNilInventory
	}

	appMap := make(map[string]App, len(apps))
	for _, a := range apps {
		appMap[a.ID] = a
	}
	advMap := make(map[string]Advertiser, len(advertisers))
	for _, a := range advertisers {
		advMap[a.ID] = a
	}
	candMap := make(map[string]Candidate, len(candidates))
	ordered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := candMap[c.ID]; !dup {
			ordered = append(ordered, c.ID)
		}
		candMap[c.ID] = c
	}

	s.mu.Lock()
	s.apps = appMap
	s.advertisers = advMap
	s.candidates = candMap
	s.ordered = ordered
	s.mu.Unlock()
	return nil
}
