// Package candidates produces the bounded set of creatives eligible for one
// decision run.
package candidates

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/models"
)

// Source supplies the raw candidate pool. The primary source may sit behind
// a remote inventory service and is allowed to fail; the generator then
// serves from its fallback cache.
type Source interface {
	Candidates(ctx context.Context) ([]models.Candidate, error)
	GetApp(id string) *models.App
}

// InventorySource adapts the in-memory inventory store to the Source
// interface, honoring context cancellation before the snapshot copy.
type InventorySource struct {
	Store models.InventoryStore
}

func (s InventorySource) Candidates(ctx context.Context) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.Candidates(), nil
}

func (s InventorySource) GetApp(id string) *models.App {
	return s.Store.GetApp(id)
}

// Result is the generator's output consumed by the orchestrator and ranker.
type Result struct {
	Candidates []models.Candidate
	// FallbackUsed is set only when the primary source failed and the
	// cached fallback set was served instead.
	FallbackUsed bool
}

// Generator filters the candidate pool down to creatives eligible for the
// request's app, platform, language and static targeting rules.
type Generator struct {
	primary Source
	cache   *fallbackCache
	max     int
	logger  *zap.Logger
}

// New builds a Generator. max bounds the returned candidate set; cacheSize
// bounds the fallback set retained from the last successful primary read.
func New(primary Source, max, cacheSize int, logger *zap.Logger) *Generator {
	if max <= 0 {
		max = 50
	}
	return &Generator{
		primary: primary,
		cache:   newFallbackCache(cacheSize),
		max:     max,
		logger:  logger,
	}
}

// Generate returns the eligible candidate set for the request. Primary
// source failure degrades to the fallback cache (FallbackUsed=true); an
// empty result is a valid no-fill outcome, never an error. The orchestrator
// never calls Generate for sensitive assessments.
func (g *Generator) Generate(ctx context.Context, req models.DecisionRequest, assessment models.OpportunityAssessment) Result {
	app := g.primary.GetApp(req.AppID)
	if app == nil || !app.Active {
		return Result{}
	}

	pool, err := g.primary.Candidates(ctx)
	fallbackUsed := false
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("primary candidate source failed, using fallback",
				zap.String("app_id", req.AppID), zap.Error(err))
		}
		pool = g.cache.get()
		fallbackUsed = len(pool) > 0
		if len(pool) == 0 {
			return Result{}
		}
	}

	eligible := make([]models.Candidate, 0, len(pool))
	for i := range pool {
		if ctx.Err() != nil {
			break
		}
		c := pool[i]
		if !g.eligible(&c, req) {
			continue
		}
		eligible = append(eligible, c)
	}

	// Cap deterministically: ordering is not significant to the ranker but
	// truncation must be reproducible.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	if len(eligible) > g.max {
		eligible = eligible[:g.max]
	}

	if err == nil {
		g.cache.put(eligible)
	}

	return Result{Candidates: eligible, FallbackUsed: fallbackUsed}
}

// eligible applies the per-candidate serving rules. Format/platform fit is
// deliberately NOT checked here: the ranker penalizes mismatches so they
// stay visible in the audit trail.
func (g *Generator) eligible(c *models.Candidate, req models.DecisionRequest) bool {
	if !c.Active {
		return false
	}
	if !c.SupportsLanguage(req.Language) {
		return false
	}
	if c.Format == models.FormatStatic && c.StaticConfig != nil && c.StaticConfig.TargetingParams != nil {
		if !matchesStaticTargeting(c.StaticConfig.TargetingParams, req) {
			return false
		}
	}
	return true
}

// matchesStaticTargeting evaluates the static format's targeting params.
// Empty lists are wildcards.
func matchesStaticTargeting(tp *models.StaticTargetingParams, req models.DecisionRequest) bool {
	if len(tp.Geo) > 0 {
		if req.Country == "" || !containsFold(tp.Geo, req.Country) {
			return false
		}
	}
	if len(tp.DeviceTypes) > 0 {
		if req.DeviceType == "" || !containsFold(tp.DeviceTypes, req.DeviceType) {
			return false
		}
	}
	if len(tp.Keywords) > 0 {
		text := strings.ToLower(req.ContextText)
		found := false
		for _, kw := range tp.Keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
