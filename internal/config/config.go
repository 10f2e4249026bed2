package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
// Scoring weights, bucket thresholds and term lists are deployment policy,
// never compiled-in constants.
type Config struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ServiceName    string
	AllowedOrigins []string
	ReloadInterval time.Duration

	RedisAddr     string
	PostgresDSN   string
	ClickHouseDSN string
	GeoIPDB       string

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64

	// Decision run budget. PhaseGrace bounds how far past its slice a phase
	// may run before the orchestrator abandons it.
	DecisionBudget       time.Duration
	PhaseGrace           time.Duration
	OpportunityShare     float64
	CandidateShare       float64
	MaxCandidates        int
	ExplorationEpsilon   float64
	FallbackCacheMaxSize int

	// Opportunity assessment policy
	SensitiveTerms      []string
	CommercialKeywords  []string
	KeywordWeight       float64
	QuestionWeight      float64
	LengthWeight        float64
	HighIntentThreshold float64
	MedIntentThreshold  float64
	LowIntentThreshold  float64

	// Ranking policy
	RelevanceWeight       float64
	FatigueWeight         float64
	FormatMismatchPenalty float64
	FatigueWindow         time.Duration

	// Request log policy
	ContextTextMaxLen int
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8788")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "addecision")
	cfg.AllowedOrigins = envList("ALLOWED_ORIGINS", []string{"*"})
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 30*time.Second)

	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "clickhouse://default:@localhost:9000/default?async_insert=1&wait_for_async_insert=1")
	cfg.GeoIPDB = getenv("GEOIP_DB", "internal/geoip/testdata/GeoLite2-Country.mmdb")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	// Decision budget sized for synchronous SDK serving.
	cfg.DecisionBudget = envDuration("DECISION_BUDGET", 150*time.Millisecond)
	cfg.PhaseGrace = envDuration("PHASE_GRACE", 25*time.Millisecond)
	cfg.OpportunityShare = envFloat("OPPORTUNITY_BUDGET_SHARE", 0.2)
	cfg.CandidateShare = envFloat("CANDIDATE_BUDGET_SHARE", 0.45)
	cfg.MaxCandidates = envInt("MAX_CANDIDATES", 50)
	cfg.ExplorationEpsilon = envFloat("EXPLORATION_EPSILON", 0.05)
	cfg.FallbackCacheMaxSize = envInt("FALLBACK_CACHE_MAX_SIZE", 10)

	cfg.SensitiveTerms = envList("SENSITIVE_TERMS", defaultSensitiveTerms)
	cfg.CommercialKeywords = envList("COMMERCIAL_KEYWORDS", defaultCommercialKeywords)
	cfg.KeywordWeight = envFloat("OPP_KEYWORD_WEIGHT", 0.6)
	cfg.QuestionWeight = envFloat("OPP_QUESTION_WEIGHT", 0.25)
	cfg.LengthWeight = envFloat("OPP_LENGTH_WEIGHT", 0.15)
	cfg.HighIntentThreshold = envFloat("INTENT_HIGH_THRESHOLD", 0.65)
	cfg.MedIntentThreshold = envFloat("INTENT_MEDIUM_THRESHOLD", 0.35)
	cfg.LowIntentThreshold = envFloat("INTENT_LOW_THRESHOLD", 0.15)

	cfg.RelevanceWeight = envFloat("RELEVANCE_WEIGHT", 0.5)
	cfg.FatigueWeight = envFloat("FATIGUE_WEIGHT", 0.15)
	cfg.FormatMismatchPenalty = envFloat("FORMAT_MISMATCH_PENALTY", 10.0)
	cfg.FatigueWindow = envDuration("FATIGUE_WINDOW", 1*time.Hour)

	cfg.ContextTextMaxLen = envInt("CONTEXT_TEXT_MAX_LEN", 256)

	return cfg
}

// Plausible starter lists; deployments override them via env.
var (
	defaultSensitiveTerms = []string{
		"suicide", "self-harm", "overdose", "abuse", "funeral", "diagnosis",
	}
	defaultCommercialKeywords = []string{
		"buy", "price", "cheap", "deal", "discount", "subscription",
		"recommend", "best", "compare", "purchase", "order", "upgrade",
	}
)

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of milliseconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// envBool parses a boolean environment variable. When unset or invalid, def
// is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envList parses a comma-separated environment variable. Entries are trimmed
// and empty entries dropped. When unset, def is returned.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
