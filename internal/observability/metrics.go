package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecision_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addecision_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// decision outcomes per algorithm version
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addecision_decisions_total",
			Help: "Total decision runs by algorithm and outcome",
		},
		[]string{"algorithm", "outcome"},
	)

	// per-phase decision latency
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addecision_phase_duration_seconds",
			Help:    "Duration of decision phases",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"phase"},
	)

	// candidate pool size after eligibility filtering
	CandidatePoolSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "addecision_candidate_pool_size",
			Help:    "Eligible candidates per decision run",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	// decisions that had to use the fallback candidate source
	FallbackCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addecision_fallback_total",
			Help: "Total decisions served from the fallback candidate source",
		},
	)

	// requests blocked by sensitive-topic detection
	SensitiveBlockCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addecision_sensitive_blocks_total",
			Help: "Total requests blocked as sensitive",
		},
	)

	// candidates dropped because scoring failed
	ScoringErrorCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addecision_scoring_errors_total",
			Help: "Total candidates dropped due to scoring errors",
		},
	)

	// decision runs that hit the time budget
	BudgetExceededCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "addecision_budget_exceeded_total",
			Help: "Total decision runs cut short by the time budget",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		DecisionCount,
		PhaseDuration,
		CandidatePoolSize,
		FallbackCount,
		SensitiveBlockCount,
		ScoringErrorCount,
		BudgetExceededCount,
	)
}
