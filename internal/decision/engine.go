// Package decision sequences the opportunity, candidate and ranking phases
// under one time budget and assembles the audit record for each run.
package decision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/decision/candidates"
	"github.com/ceedads/addecision/internal/decision/ranking"
	"github.com/ceedads/addecision/internal/models"
	"github.com/ceedads/addecision/internal/observability"
)

// Assessor is the opportunity phase contract.
type Assessor interface {
	Assess(req models.DecisionRequest) models.OpportunityAssessment
}

// Generator is the candidate phase contract. Implementations must honor
// context cancellation and return their best partial result.
type Generator interface {
	Generate(ctx context.Context, req models.DecisionRequest, assessment models.OpportunityAssessment) candidates.Result
}

// Ranker is the ranking phase contract.
type Ranker interface {
	Rank(ctx context.Context, req models.DecisionRequest, assessment models.OpportunityAssessment, cands []models.Candidate) ranking.Result
}

// Config is the orchestrator's budget policy. The engine is the only
// component aware of the overall SLA; phases just receive deadlines.
type Config struct {
	// Budget is the total wall-clock allowance for one decision run.
	Budget time.Duration
	// Grace bounds how long the engine waits for a phase to notice
	// cancellation before abandoning it.
	Grace time.Duration
	// OpportunityShare and CandidateShare are the fractions of Budget
	// allotted to the first two phases; ranking gets whatever remains.
	OpportunityShare float64
	CandidateShare   float64
}

// Decision outcome labels for metrics.
const (
	outcomeServed         = "served"
	outcomeNoFill         = "no_fill"
	outcomeSensitiveBlock = "sensitive_block"
)

// Engine runs the decision pipeline. Decide never returns an error: every
// failure mode degrades to a well-formed no-fill record.
type Engine struct {
	assessor  Assessor
	generator Generator
	ranker    Ranker
	cfg       Config
	metrics   observability.MetricsRegistry
	logger    *zap.Logger
}

// NewEngine wires the three phases under the given budget policy.
func NewEngine(assessor Assessor, generator Generator, ranker Ranker, cfg Config, metrics observability.MetricsRegistry, logger *zap.Logger) *Engine {
	if cfg.Budget <= 0 {
		cfg.Budget = 150 * time.Millisecond
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 25 * time.Millisecond
	}
	if cfg.CandidateShare <= 0 || cfg.CandidateShare >= 1 {
		cfg.CandidateShare = 0.45
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Engine{
		assessor:  assessor,
		generator: generator,
		ranker:    ranker,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Decide runs one decision and returns the resolved ad (nil on no-fill)
// plus the frozen audit record. State machine:
// START -> ASSESSING -> (SENSITIVE_BLOCK -> DONE) | (GENERATING -> RANKING -> DONE).
func (e *Engine) Decide(ctx context.Context, req models.DecisionRequest) (*models.ResolvedAd, models.DecisionRecord) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Budget)
	defer cancel()

	rec := models.DecisionRecord{Algorithm: models.AlgorithmV2}

	// Opportunity phase: pure CPU, runs inline.
	oppStart := time.Now()
	assessment := e.assessor.Assess(req)
	oppDur := time.Since(oppStart)
	e.metrics.RecordPhaseDuration("opportunity", oppDur)
	if max := e.opportunitySlice(); max > 0 && oppDur > max {
		e.metrics.IncrementBudgetExceeded()
	}
	rec.OppScore = assessment.Score
	rec.OppIntent = assessment.Intent
	rec.PhaseTimings.OpportunityMs = toMs(oppDur)

	if assessment.Blocked() {
		e.metrics.IncrementSensitiveBlocks()
		e.finalize(&rec, start, outcomeSensitiveBlock)
		return nil, rec
	}

	// Candidate phase: bounded by its budget slice plus grace.
	genRes, candDur, candTimedOut := e.runCandidatePhase(runCtx, req, assessment)
	rec.PhaseTimings.CandidateMs = toMs(candDur)
	e.metrics.RecordPhaseDuration("candidate", candDur)
	e.metrics.RecordCandidatePoolSize(len(genRes.Candidates))
	if candTimedOut {
		e.metrics.IncrementBudgetExceeded()
	}
	rec.FallbackUsed = genRes.FallbackUsed
	if genRes.FallbackUsed {
		e.metrics.IncrementFallbacks()
	}

	if len(genRes.Candidates) == 0 {
		e.finalize(&rec, start, outcomeNoFill)
		return nil, rec
	}

	// Ranking phase: gets the remaining budget.
	rankRes, rankDur, rankTimedOut := e.runRankingPhase(runCtx, req, assessment, genRes.Candidates)
	rec.PhaseTimings.RankingMs = toMs(rankDur)
	e.metrics.RecordPhaseDuration("ranking", rankDur)
	if rankTimedOut {
		e.metrics.IncrementBudgetExceeded()
	}

	rec.CandidateCount = rankRes.Scored
	if dropped := len(genRes.Candidates) - rankRes.Scored; dropped > 0 && !rankTimedOut {
		for i := 0; i < dropped; i++ {
			e.metrics.IncrementScoringErrors()
		}
	}
	if rankRes.AllFailed {
		rec.FallbackUsed = true
		e.metrics.IncrementFallbacks()
	}

	if rankRes.Winner == nil {
		e.finalize(&rec, start, outcomeNoFill)
		return nil, rec
	}

	rec.FinalScore = rankRes.FinalScore
	rec.ScoreBreakdown = rankRes.Breakdown
	e.finalize(&rec, start, outcomeServed)
	return rankRes.Winner.Resolve(req.Language), rec
}

func (e *Engine) opportunitySlice() time.Duration {
	if e.cfg.OpportunityShare <= 0 || e.cfg.OpportunityShare >= 1 {
		return 0
	}
	return time.Duration(float64(e.cfg.Budget) * e.cfg.OpportunityShare)
}

// runCandidatePhase executes the generator under its budget slice. An
// abandoned phase yields an empty result; the goroutine drains via the
// buffered channel once it notices cancellation.
func (e *Engine) runCandidatePhase(runCtx context.Context, req models.DecisionRequest, assessment models.OpportunityAssessment) (candidates.Result, time.Duration, bool) {
	slice := time.Duration(float64(e.cfg.Budget) * e.cfg.CandidateShare)
	phaseCtx, cancel := context.WithTimeout(runCtx, slice)
	defer cancel()

	start := time.Now()
	ch := make(chan candidates.Result, 1)
	go func() {
		ch <- e.generator.Generate(phaseCtx, req, assessment)
	}()

	select {
	case res := <-ch:
		return res, time.Since(start), false
	case <-phaseCtx.Done():
	}
	// Grace period for the phase to return its partial result.
	select {
	case res := <-ch:
		return res, time.Since(start), false
	case <-time.After(e.cfg.Grace):
		if e.logger != nil {
			e.logger.Warn("candidate phase abandoned at budget",
				zap.String("app_id", req.AppID), zap.Duration("slice", slice))
		}
		return candidates.Result{}, time.Since(start), true
	}
}

// runRankingPhase executes the ranker under the run's remaining budget.
func (e *Engine) runRankingPhase(runCtx context.Context, req models.DecisionRequest, assessment models.OpportunityAssessment, cands []models.Candidate) (ranking.Result, time.Duration, bool) {
	start := time.Now()
	ch := make(chan ranking.Result, 1)
	go func() {
		ch <- e.ranker.Rank(runCtx, req, assessment, cands)
	}()

	select {
	case res := <-ch:
		return res, time.Since(start), false
	case <-runCtx.Done():
	}
	select {
	case res := <-ch:
		return res, time.Since(start), false
	case <-time.After(e.cfg.Grace):
		if e.logger != nil {
			e.logger.Warn("ranking phase abandoned at budget",
				zap.String("app_id", req.AppID), zap.Int("candidates", len(cands)))
		}
		return ranking.Result{}, time.Since(start), true
	}
}

// finalize stamps the total timing and outcome. TotalMs is clamped to the
// phase sum so rounding can never make overhead look negative.
func (e *Engine) finalize(rec *models.DecisionRecord, start time.Time, outcome string) {
	total := toMs(time.Since(start))
	sum := rec.PhaseTimings.OpportunityMs + rec.PhaseTimings.CandidateMs + rec.PhaseTimings.RankingMs
	if total < sum {
		total = sum
	}
	rec.PhaseTimings.TotalMs = total
	e.metrics.IncrementDecisions(string(rec.Algorithm), outcome)
}

func toMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
