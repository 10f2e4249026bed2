package ranking

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/decision/fatigue"
	"github.com/ceedads/addecision/internal/models"
)

// deterministicWeights disables exploration so scores are exact.
func deterministicWeights() Weights {
	return Weights{Relevance: 0.5, Fatigue: 0.15, FormatMismatch: 10, Epsilon: 0}
}

func newTestRanker(w Weights, counter fatigue.Counter) *Ranker {
	return New(w, counter, 42, zap.NewNop())
}

func webRequest(context string) models.DecisionRequest {
	return models.DecisionRequest{
		AppID:       "app1",
		Platform:    models.PlatformWeb,
		Language:    models.LanguageEng,
		ContextText: context,
	}
}

func actionCard(id string, base float64) models.Candidate {
	return models.Candidate{
		ID:        id,
		Format:    models.FormatActionCard,
		BaseScore: base,
		Active:    true,
	}
}

func TestRankEmptyInput(t *testing.T) {
	r := newTestRanker(deterministicWeights(), fatigue.NewMemoryCounter(0))
	res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, nil)
	if res.Winner != nil || res.Scored != 0 || res.AllFailed {
		t.Errorf("Rank(nil) = %+v, want zero result", res)
	}
}

func TestRankWinnerIsArgmax(t *testing.T) {
	r := newTestRanker(deterministicWeights(), fatigue.NewMemoryCounter(0))

	cands := []models.Candidate{
		actionCard("ad1", 3),
		actionCard("ad2", 7),
		actionCard("ad3", 5),
	}
	res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, cands)
	if res.Winner == nil || res.Winner.ID != "ad2" {
		t.Fatalf("winner = %+v, want ad2", res.Winner)
	}
	if res.Scored != 3 {
		t.Errorf("Scored = %d, want 3", res.Scored)
	}
	if res.FinalScore != 7 {
		t.Errorf("FinalScore = %.3f, want 7", res.FinalScore)
	}
}

func TestRankFinalScoreIsBreakdownSum(t *testing.T) {
	counter := fatigue.NewMemoryCounter(0)
	for i := 0; i < 3; i++ {
		_, _ = counter.Increment(context.Background(), "app1", "ad1")
	}
	r := newTestRanker(deterministicWeights(), counter)

	cands := []models.Candidate{{
		ID:        "ad1",
		Format:    models.FormatLeadGen,
		BaseScore: 5,
		Keywords:  []string{"shoes", "laptop"},
		Platforms: []models.Platform{models.PlatformIOS},
		Active:    true,
	}}
	res := r.Rank(context.Background(), webRequest("cheap running shoes"), models.OpportunityAssessment{}, cands)
	if res.Winner == nil {
		t.Fatal("no winner")
	}

	b := res.Breakdown
	if sum := b.Total(); math.Abs(res.FinalScore-sum) > 1e-9 {
		t.Errorf("FinalScore %.6f != breakdown sum %.6f", res.FinalScore, sum)
	}
	if b.BaseScore != 5 {
		t.Errorf("BaseScore = %.3f, want 5", b.BaseScore)
	}
	// One of two keywords matched.
	if want := 0.5 * 0.5; math.Abs(b.RelevanceBoost-want) > 1e-9 {
		t.Errorf("RelevanceBoost = %.6f, want %.6f", b.RelevanceBoost, want)
	}
	if want := -0.15 * math.Log1p(3); math.Abs(b.FatiguePenalty-want) > 1e-9 {
		t.Errorf("FatiguePenalty = %.6f, want %.6f", b.FatiguePenalty, want)
	}
	// Web request against an iOS-only creative.
	if b.FormatPenalty != -10 {
		t.Errorf("FormatPenalty = %.3f, want -10", b.FormatPenalty)
	}
	if b.ExplorationBonus != 0 {
		t.Errorf("ExplorationBonus = %.6f, want 0 with epsilon disabled", b.ExplorationBonus)
	}
}

func TestRankTieBreaksOnLowestID(t *testing.T) {
	r := newTestRanker(deterministicWeights(), fatigue.NewMemoryCounter(0))

	cands := []models.Candidate{
		actionCard("ad9", 5),
		actionCard("ad2", 5),
		actionCard("ad5", 5),
	}
	for i := 0; i < 5; i++ {
		res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, cands)
		if res.Winner == nil || res.Winner.ID != "ad2" {
			t.Fatalf("run %d: winner = %+v, want ad2", i, res.Winner)
		}
	}
}

func TestRankFatigueDemotesRepeatedCandidate(t *testing.T) {
	counter := fatigue.NewMemoryCounter(0)
	for i := 0; i < 10; i++ {
		_, _ = counter.Increment(context.Background(), "app1", "ad1")
	}
	r := newTestRanker(deterministicWeights(), counter)

	cands := []models.Candidate{
		actionCard("ad1", 5),
		actionCard("ad2", 5),
	}
	res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, cands)
	if res.Winner == nil || res.Winner.ID != "ad2" {
		t.Errorf("winner = %+v, want fresh candidate ad2", res.Winner)
	}
}

func TestRankDropsFailingCandidateAndContinues(t *testing.T) {
	r := newTestRanker(deterministicWeights(), fatigue.NewMemoryCounter(0))

	cands := []models.Candidate{
		{ID: "", Format: models.FormatActionCard, BaseScore: 100, Active: true},
		{ID: "ad2", Format: "", BaseScore: 100, Active: true},
		{ID: "ad3", Format: models.FormatActionCard, BaseScore: math.NaN(), Active: true},
		actionCard("ad4", 5),
	}
	res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, cands)
	if res.Winner == nil || res.Winner.ID != "ad4" {
		t.Fatalf("winner = %+v, want ad4", res.Winner)
	}
	if res.Scored != 1 {
		t.Errorf("Scored = %d, want 1 (failed candidates must not count)", res.Scored)
	}
	if res.AllFailed {
		t.Error("AllFailed = true with a surviving candidate")
	}
}

func TestRankAllCandidatesFail(t *testing.T) {
	r := newTestRanker(deterministicWeights(), fatigue.NewMemoryCounter(0))

	cands := []models.Candidate{
		{ID: "", Format: models.FormatActionCard, BaseScore: 1},
		{ID: "ad2", Format: "", BaseScore: 1},
	}
	res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, cands)
	if res.Winner != nil {
		t.Errorf("winner = %+v, want nil", res.Winner)
	}
	if !res.AllFailed {
		t.Error("AllFailed = false, want true when no candidate scores")
	}
	if res.Scored != 0 {
		t.Errorf("Scored = %d, want 0", res.Scored)
	}
}

func TestRankCancelledRunIsNotAllFailed(t *testing.T) {
	r := newTestRanker(deterministicWeights(), fatigue.NewMemoryCounter(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands := []models.Candidate{
		actionCard("ad1", 5),
		actionCard("ad2", 3),
	}
	res := r.Rank(ctx, webRequest("hello"), models.OpportunityAssessment{}, cands)
	if res.Winner != nil {
		t.Errorf("winner = %+v, want nil after cancellation", res.Winner)
	}
	if res.AllFailed {
		t.Error("AllFailed = true on a cancelled run; healthy candidates were never attempted")
	}
	if res.Scored != 0 {
		t.Errorf("Scored = %d, want 0", res.Scored)
	}
}

func TestRankCounterFailureDegradesToZeroFatigue(t *testing.T) {
	r := newTestRanker(deterministicWeights(), failingCounter{})

	cands := []models.Candidate{actionCard("ad1", 5)}
	res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{}, cands)
	if res.Winner == nil {
		t.Fatal("counter failure must not abort ranking")
	}
	if res.Breakdown.FatiguePenalty != 0 {
		t.Errorf("FatiguePenalty = %.6f, want 0 when counts are unavailable", res.Breakdown.FatiguePenalty)
	}
}

func TestRankExplorationIsBounded(t *testing.T) {
	w := deterministicWeights()
	w.Epsilon = 0.05
	r := newTestRanker(w, fatigue.NewMemoryCounter(0))

	for i := 0; i < 50; i++ {
		res := r.Rank(context.Background(), webRequest("hello"), models.OpportunityAssessment{},
			[]models.Candidate{actionCard("ad1", 5)})
		if res.Winner == nil {
			t.Fatal("no winner")
		}
		bonus := res.Breakdown.ExplorationBonus
		if bonus < 0 || bonus > w.Epsilon {
			t.Fatalf("ExplorationBonus = %.6f, want within [0, %.2f]", bonus, w.Epsilon)
		}
	}
}

type failingCounter struct{}

func (failingCounter) Increment(ctx context.Context, appID, candidateID string) (int64, error) {
	return 0, context.DeadlineExceeded
}

func (failingCounter) Get(ctx context.Context, appID, candidateID string) (int64, error) {
	return 0, context.DeadlineExceeded
}

func (failingCounter) GetBatch(ctx context.Context, appID string, candidateIDs []string) ([]int64, error) {
	return nil, context.DeadlineExceeded
}
