package models

// Intent is the five-bucket ordinal classification of an ad opportunity,
// ordered by monetization desirability. IntentSensitive always blocks
// serving regardless of score.
type Intent string

const (
	IntentSensitive        Intent = "sensitive"
	IntentChitchat         Intent = "chitchat"
	IntentLowIntent        Intent = "low_intent"
	IntentMediumCommercial Intent = "medium_commercial"
	IntentHighCommercial   Intent = "high_commercial"
)

// AlgorithmVersion tags which decision path produced a record so historical
// log rows can be told apart.
type AlgorithmVersion string

const (
	AlgorithmV1 AlgorithmVersion = "v1"
	AlgorithmV2 AlgorithmVersion = "v2"
)

// OpportunityAssessment is the output of the opportunity phase.
type OpportunityAssessment struct {
	Score  float64 `json:"oppScore"`
	Intent Intent  `json:"oppIntent"`
}

// Blocked reports whether the assessment forbids serving outright.
func (a OpportunityAssessment) Blocked() bool {
	return a.Intent == IntentSensitive
}

// ScoreBreakdown decomposes one candidate's final score into its five
// additive terms. Penalties are stored as non-positive values so that
// FinalScore is always the plain sum of the five fields.
type ScoreBreakdown struct {
	BaseScore        float64 `json:"baseScore"`
	RelevanceBoost   float64 `json:"relevanceBoost"`
	FatiguePenalty   float64 `json:"fatiguePenalty"`
	FormatPenalty    float64 `json:"formatPenalty"`
	ExplorationBonus float64 `json:"explorationBonus"`
}

// Total returns the sum of the five terms.
func (b ScoreBreakdown) Total() float64 {
	return b.BaseScore + b.RelevanceBoost + b.FatiguePenalty + b.FormatPenalty + b.ExplorationBonus
}

// PhaseTimings records wall-clock milliseconds per decision phase. TotalMs
// includes orchestration overhead and is never less than the phase sum.
type PhaseTimings struct {
	OpportunityMs float64 `json:"opportunityMs"`
	CandidateMs   float64 `json:"candidateMs"`
	RankingMs     float64 `json:"rankingMs"`
	TotalMs       float64 `json:"totalMs"`
}

// DecisionRecord is the audit trail of one decision run. It is assembled by
// the orchestrator as phases complete and is frozen once the run returns;
// nothing mutates it afterwards. The publisher console renders it read-only
// under the request log's v2Meta field.
type DecisionRecord struct {
	OppScore       float64          `json:"oppScore"`
	OppIntent      Intent           `json:"oppIntent"`
	CandidateCount int              `json:"candidateCount"`
	FinalScore     float64          `json:"finalScore"`
	ScoreBreakdown ScoreBreakdown   `json:"scoreBreakdown"`
	FallbackUsed   bool             `json:"fallbackUsed"`
	PhaseTimings   PhaseTimings     `json:"phaseTimings"`
	Algorithm      AlgorithmVersion `json:"algorithmVersion"`
}
