// Package opportunity classifies whether an ad request is worth monetizing.
package opportunity

import (
	"math"
	"strings"
	"unicode"

	"github.com/ceedads/addecision/internal/models"
)

// Config carries the assessment policy. Term lists, weights and thresholds
// come from deployment configuration.
type Config struct {
	SensitiveTerms     []string
	CommercialKeywords []string

	KeywordWeight  float64
	QuestionWeight float64
	LengthWeight   float64

	HighThreshold   float64
	MediumThreshold float64
	LowThreshold    float64
}

// Assessor computes an opportunity score and intent bucket from request
// context text. Assess is a pure function of its input: identical context
// always yields an identical assessment.
type Assessor struct {
	cfg        Config
	sensitive  []string
	commercial map[string]struct{}
}

// New builds an Assessor, normalizing the policy term lists once.
func New(cfg Config) *Assessor {
	a := &Assessor{
		cfg:        cfg,
		commercial: make(map[string]struct{}, len(cfg.CommercialKeywords)),
	}
	for _, t := range cfg.SensitiveTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			a.sensitive = append(a.sensitive, t)
		}
	}
	for _, k := range cfg.CommercialKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			a.commercial[k] = struct{}{}
		}
	}
	return a
}

// questionLeads are tokens that mark an information-seeking question when
// they open the context.
var questionLeads = map[string]struct{}{
	"what": {}, "which": {}, "where": {}, "how": {}, "should": {}, "can": {},
}

// Assess classifies the request context. Sensitive-topic detection runs
// first and overrides every other signal; empty or unparseable text degrades
// to the lowest non-blocking bucket, never to an error.
func (a *Assessor) Assess(req models.DecisionRequest) models.OpportunityAssessment {
	text := strings.ToLower(strings.TrimSpace(req.ContextText))
	if text == "" {
		return models.OpportunityAssessment{Score: 0, Intent: models.IntentChitchat}
	}

	// Substring match catches multi-word and hyphenated terms that
	// tokenization would split.
	for _, term := range a.sensitive {
		if strings.Contains(text, term) {
			return models.OpportunityAssessment{Score: 0, Intent: models.IntentSensitive}
		}
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return models.OpportunityAssessment{Score: 0, Intent: models.IntentChitchat}
	}

	matches := 0
	for _, tok := range tokens {
		if _, ok := a.commercial[tok]; ok {
			matches++
		}
	}
	// Keyword density saturates quickly; three commercial terms in a short
	// context is already a strong signal.
	keywordSignal := math.Min(1, float64(matches)/3)

	questionSignal := 0.0
	if strings.Contains(text, "?") || strings.Contains(text, "？") {
		questionSignal = 1.0
	} else if _, ok := questionLeads[tokens[0]]; ok {
		questionSignal = 0.5
	}

	lengthSignal := math.Min(1, float64(len(tokens))/20)

	score := a.cfg.KeywordWeight*keywordSignal +
		a.cfg.QuestionWeight*questionSignal +
		a.cfg.LengthWeight*lengthSignal
	score = math.Max(0, math.Min(1, score))

	return models.OpportunityAssessment{Score: score, Intent: a.bucket(score)}
}

// bucket maps a continuous score onto the four non-blocking intent classes.
func (a *Assessor) bucket(score float64) models.Intent {
	switch {
	case score >= a.cfg.HighThreshold:
		return models.IntentHighCommercial
	case score >= a.cfg.MediumThreshold:
		return models.IntentMediumCommercial
	case score >= a.cfg.LowThreshold:
		return models.IntentLowIntent
	default:
		return models.IntentChitchat
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
