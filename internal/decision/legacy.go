package decision

import (
	"context"
	"time"

	"github.com/ceedads/addecision/internal/models"
)

// DecideLegacy is the pre-scoring v1 path kept for apps pinned to it: no
// opportunity gate, no ranking, just the first eligible candidate by ID.
// Its records carry algorithmVersion "v1" so log viewers can tell the two
// decision paths apart.
func (e *Engine) DecideLegacy(ctx context.Context, req models.DecisionRequest) (*models.ResolvedAd, models.DecisionRecord) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Budget)
	defer cancel()

	rec := models.DecisionRecord{Algorithm: models.AlgorithmV1}

	genRes, candDur, timedOut := e.runCandidatePhase(runCtx, req, models.OpportunityAssessment{})
	rec.PhaseTimings.CandidateMs = toMs(candDur)
	e.metrics.RecordPhaseDuration("candidate", candDur)
	if timedOut {
		e.metrics.IncrementBudgetExceeded()
	}
	rec.FallbackUsed = genRes.FallbackUsed
	if genRes.FallbackUsed {
		e.metrics.IncrementFallbacks()
	}
	rec.CandidateCount = len(genRes.Candidates)

	var winner *models.Candidate
	for i := range genRes.Candidates {
		c := &genRes.Candidates[i]
		if !c.SupportsPlatform(req.Platform) {
			continue
		}
		if winner == nil || c.ID < winner.ID {
			winner = c
		}
	}

	if winner == nil {
		e.finalize(&rec, start, outcomeNoFill)
		return nil, rec
	}
	e.finalize(&rec, start, outcomeServed)
	return winner.Resolve(req.Language), rec
}
