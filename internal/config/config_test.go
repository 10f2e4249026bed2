package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8788" {
		t.Errorf("Port = %q, want 8788", cfg.Port)
	}
	if cfg.DecisionBudget != 150*time.Millisecond {
		t.Errorf("DecisionBudget = %v, want 150ms", cfg.DecisionBudget)
	}
	if cfg.PhaseGrace != 25*time.Millisecond {
		t.Errorf("PhaseGrace = %v, want 25ms", cfg.PhaseGrace)
	}
	if cfg.MaxCandidates != 50 {
		t.Errorf("MaxCandidates = %d, want 50", cfg.MaxCandidates)
	}
	if cfg.ExplorationEpsilon != 0.05 {
		t.Errorf("ExplorationEpsilon = %v, want 0.05", cfg.ExplorationEpsilon)
	}
	if len(cfg.SensitiveTerms) == 0 {
		t.Error("SensitiveTerms empty, want built-in defaults")
	}
	if cfg.HighIntentThreshold <= cfg.MedIntentThreshold ||
		cfg.MedIntentThreshold <= cfg.LowIntentThreshold {
		t.Errorf("intent thresholds not strictly ordered: %v/%v/%v",
			cfg.HighIntentThreshold, cfg.MedIntentThreshold, cfg.LowIntentThreshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DECISION_BUDGET", "80ms")
	t.Setenv("MAX_CANDIDATES", "10")
	t.Setenv("EXPLORATION_EPSILON", "0")
	t.Setenv("SENSITIVE_TERMS", "grief, bereavement ,")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()
	if cfg.DecisionBudget != 80*time.Millisecond {
		t.Errorf("DecisionBudget = %v, want 80ms", cfg.DecisionBudget)
	}
	if cfg.MaxCandidates != 10 {
		t.Errorf("MaxCandidates = %d, want 10", cfg.MaxCandidates)
	}
	if cfg.ExplorationEpsilon != 0 {
		t.Errorf("ExplorationEpsilon = %v, want 0", cfg.ExplorationEpsilon)
	}
	if len(cfg.SensitiveTerms) != 2 || cfg.SensitiveTerms[0] != "grief" || cfg.SensitiveTerms[1] != "bereavement" {
		t.Errorf("SensitiveTerms = %v, want trimmed two-entry list", cfg.SensitiveTerms)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestEnvDurationAcceptsMilliseconds(t *testing.T) {
	t.Setenv("DECISION_BUDGET", "90")
	cfg := Load()
	if cfg.DecisionBudget != 90*time.Millisecond {
		t.Errorf("DecisionBudget = %v, want bare number read as ms", cfg.DecisionBudget)
	}
}

func TestEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_CANDIDATES", "lots")
	t.Setenv("EXPLORATION_EPSILON", "much")
	t.Setenv("TRACING_ENABLED", "maybe")

	cfg := Load()
	if cfg.MaxCandidates != 50 {
		t.Errorf("MaxCandidates = %d, want default 50", cfg.MaxCandidates)
	}
	if cfg.ExplorationEpsilon != 0.05 {
		t.Errorf("ExplorationEpsilon = %v, want default", cfg.ExplorationEpsilon)
	}
	if cfg.TracingEnabled {
		t.Error("TracingEnabled = true, want default false")
	}
}
