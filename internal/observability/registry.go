package observability

import "time"

// MetricsRegistry abstracts metric recording so components take an injected
// registry instead of touching the global Prometheus collectors directly.
type MetricsRegistry interface {
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	IncrementDecisions(algorithm, outcome string)
	RecordPhaseDuration(phase string, duration time.Duration)
	RecordCandidatePoolSize(n int)
	IncrementFallbacks()
	IncrementSensitiveBlocks()
	IncrementScoringErrors()
	IncrementBudgetExceeded()
}

// PrometheusRegistry implements MetricsRegistry on the package collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementDecisions(algorithm, outcome string) {
	DecisionCount.WithLabelValues(algorithm, outcome).Inc()
}

func (r *PrometheusRegistry) RecordPhaseDuration(phase string, duration time.Duration) {
	PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) RecordCandidatePoolSize(n int) {
	CandidatePoolSize.Observe(float64(n))
}

func (r *PrometheusRegistry) IncrementFallbacks() {
	FallbackCount.Inc()
}

func (r *PrometheusRegistry) IncrementSensitiveBlocks() {
	SensitiveBlockCount.Inc()
}

func (r *PrometheusRegistry) IncrementScoringErrors() {
	ScoringErrorCount.Inc()
}

func (r *PrometheusRegistry) IncrementBudgetExceeded() {
	BudgetExceededCount.Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing.
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry.
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementDecisions(algorithm, outcome string)                         {}
func (r *NoOpRegistry) RecordPhaseDuration(phase string, duration time.Duration)             {}
func (r *NoOpRegistry) RecordCandidatePoolSize(n int)                                        {}
func (r *NoOpRegistry) IncrementFallbacks()                                                  {}
func (r *NoOpRegistry) IncrementSensitiveBlocks()                                            {}
func (r *NoOpRegistry) IncrementScoringErrors()                                              {}
func (r *NoOpRegistry) IncrementBudgetExceeded()                                             {}
