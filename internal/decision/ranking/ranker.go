// Package ranking scores candidates with an explainable additive model and
// selects the winner.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/decision/fatigue"
	"github.com/ceedads/addecision/internal/models"
)

// Weights carries the ranking policy. FormatMismatch must be large relative
// to base scores so an unsupported format nearly always loses while staying
// visible in the score breakdown. An Epsilon of zero disables exploration,
// making ranking fully deterministic.
type Weights struct {
	Relevance      float64
	Fatigue        float64
	FormatMismatch float64
	Epsilon        float64
}

// Result is the ranking outcome. A nil Winner with a zeroed breakdown is the
// no-fill path. Scored counts candidates that survived scoring; AllFailed is
// set when a non-empty input produced no scoreable candidate.
type Result struct {
	Winner     *models.Candidate
	Breakdown  models.ScoreBreakdown
	FinalScore float64
	Scored     int
	AllFailed  bool
}

var errMissingFeatures = errors.New("candidate missing required scoring features")

// Ranker scores candidates and picks the argmax. Exposure counts come from
// the injected fatigue counter; the exploration term draws from a seedable
// generator so tests can pin or zero it.
type Ranker struct {
	weights  Weights
	counters fatigue.Counter
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a Ranker with the given policy and exploration seed.
func New(w Weights, counters fatigue.Counter, seed int64, logger *zap.Logger) *Ranker {
	return &Ranker{
		weights:  w,
		counters: counters,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Rank scores every candidate and returns the winner by final score, ties
// broken by lowest candidate ID. A failing candidate is dropped and the
// batch continues; an empty or fully-failed batch yields the no-fill result.
func (r *Ranker) Rank(ctx context.Context, req models.DecisionRequest, assessment models.OpportunityAssessment, cands []models.Candidate) Result {
	if len(cands) == 0 {
		return Result{}
	}

	exposures := r.readExposures(ctx, req.AppID, cands)
	contextTokens := tokenSet(req.ContextText)

	var (
		winner    *models.Candidate
		best      models.ScoreBreakdown
		bestScore float64
		scored    int
	)

	for i := range cands {
		if ctx.Err() != nil {
			break
		}
		c := &cands[i]
		breakdown, err := r.scoreOne(c, req, contextTokens, exposures[i])
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("candidate dropped from ranking",
					zap.String("candidate_id", c.ID), zap.Error(err))
			}
			continue
		}
		scored++
		final := breakdown.Total()
		if winner == nil || final > bestScore || (final == bestScore && c.ID < winner.ID) {
			winner = c
			best = breakdown
			bestScore = final
		}
	}

	if winner == nil {
		// A run cut short by its deadline is a plain no-fill, not a scoring
		// failure; AllFailed is reserved for batches that were fully attempted
		// and produced nothing.
		if ctx.Err() != nil {
			return Result{}
		}
		return Result{AllFailed: true}
	}
	return Result{
		Winner:     winner,
		Breakdown:  best,
		FinalScore: bestScore,
		Scored:     scored,
	}
}

// scoreOne computes the five-term breakdown for a single candidate. Any
// panic is confined to this candidate so one bad creative cannot abort the
// batch.
func (r *Ranker) scoreOne(c *models.Candidate, req models.DecisionRequest, contextTokens map[string]struct{}, exposures int64) (breakdown models.ScoreBreakdown, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scoring panic: %v", rec)
		}
	}()

	if c.ID == "" || c.Format == "" || math.IsNaN(c.BaseScore) {
		return models.ScoreBreakdown{}, errMissingFeatures
	}

	breakdown.BaseScore = c.BaseScore
	breakdown.RelevanceBoost = r.weights.Relevance * keywordOverlap(contextTokens, c.Keywords)
	// log1p keeps the penalty monotone in exposures without ever dwarfing a
	// fresh candidate's base score on the first few impressions.
	breakdown.FatiguePenalty = -r.weights.Fatigue * math.Log1p(float64(exposures))
	if !c.SupportsPlatform(req.Platform) {
		breakdown.FormatPenalty = -r.weights.FormatMismatch
	}
	breakdown.ExplorationBonus = r.exploration(exposures)
	return breakdown, nil
}

// exploration draws a bounded random bonus, damped for candidates that have
// already been exposed so under-served creatives surface first.
func (r *Ranker) exploration(exposures int64) float64 {
	if r.weights.Epsilon <= 0 {
		return 0
	}
	r.mu.Lock()
	draw := r.rng.Float64()
	r.mu.Unlock()
	return r.weights.Epsilon * draw / (1 + float64(exposures))
}

// readExposures batch-reads fatigue counts. A counter failure degrades to
// zero counts; a stale or missing fatigue value only softens the penalty.
func (r *Ranker) readExposures(ctx context.Context, appID string, cands []models.Candidate) []int64 {
	ids := make([]string, len(cands))
	for i := range cands {
		ids[i] = cands[i].ID
	}
	if r.counters == nil {
		return make([]int64, len(cands))
	}
	counts, err := r.counters.GetBatch(ctx, appID, ids)
	if err != nil || len(counts) != len(cands) {
		if err != nil && r.logger != nil {
			r.logger.Warn("exposure read failed, scoring without fatigue", zap.Error(err))
		}
		return make([]int64, len(cands))
	}
	return counts
}

// keywordOverlap is the share of candidate keywords present in the context.
func keywordOverlap(contextTokens map[string]struct{}, keywords []string) float64 {
	if len(keywords) == 0 || len(contextTokens) == 0 {
		return 0
	}
	matches := 0
	for _, kw := range keywords {
		if _, ok := contextTokens[strings.ToLower(kw)]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

func tokenSet(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
