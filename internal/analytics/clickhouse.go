// Package analytics persists one row per ad request, including the decision
// metadata the publisher console renders under v2Meta.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/ceedads/addecision/internal/models"
)

// RequestLog is one logged ad request with its decision record flattened in.
// ContextText arrives already redacted per the app's context policy.
type RequestLog struct {
	Timestamp       time.Time
	RequestID       string
	AppID           string
	Status          models.RequestStatus
	Platform        models.Platform
	Language        models.Language
	UserAgent       string
	Origin          string
	DeviceType      string
	Country         string
	ContextText     string
	ContextTextHash string
	ContextTextMode models.ContextTextMode
	ErrorCode       string
	ErrorMessage    string
	ResponseTimeMs  float64
	AdID            string
	AdvertiserID    string
	Format          models.AdFormat
	Record          models.DecisionRecord
}

// Service is the request-log sink. Implementations must tolerate being
// called on the serving hot path.
type Service interface {
	RecordDecision(ctx context.Context, row RequestLog) error
	Close()
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse connection.
type Analytics struct {
	DB *sql.DB
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS ad_requests (
    timestamp         DateTime64(3),
    request_id        String,
    app_id            String,
    status            String,
    platform          String,
    language          String,
    user_agent        String,
    origin            String,
    device_type       String,
    country           String,
    context_text      String,
    context_text_hash String,
    context_text_mode String,
    error_code        String,
    error_message     String,
    response_time_ms  Float64,
    ad_id             String,
    advertiser_id     String,
    format            String,
    algorithm_version String,
    opp_score         Float64,
    opp_intent        String,
    candidate_count   Int32,
    final_score       Float64,
    base_score        Float64,
    relevance_boost   Float64,
    fatigue_penalty   Float64,
    format_penalty    Float64,
    exploration_bonus Float64,
    fallback_used     UInt8,
    opportunity_ms    Float64,
    candidate_ms      Float64,
    ranking_ms        Float64,
    total_ms          Float64
) ENGINE=MergeTree() ORDER BY (app_id, timestamp)`

// InitClickHouse connects to ClickHouse and ensures the ad_requests table.
func InitClickHouse(dsn string) (*Analytics, error) {
	chDB, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	chDB.SetMaxOpenConns(25)
	if err := chDB.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := chDB.ExecContext(context.Background(), createTableSQL); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("connected to clickhouse")
	return &Analytics{DB: chDB}, nil
}

// RecordDecision inserts one request-log row.
func (a *Analytics) RecordDecision(ctx context.Context, row RequestLog) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	fallback := uint8(0)
	if row.Record.FallbackUsed {
		fallback = 1
	}
	_, err := a.DB.ExecContext(ctx, `INSERT INTO ad_requests (
        timestamp, request_id, app_id, status, platform, language,
        user_agent, origin, device_type, country,
        context_text, context_text_hash, context_text_mode,
        error_code, error_message, response_time_ms,
        ad_id, advertiser_id, format, algorithm_version,
        opp_score, opp_intent, candidate_count, final_score,
        base_score, relevance_boost, fatigue_penalty, format_penalty, exploration_bonus,
        fallback_used, opportunity_ms, candidate_ms, ranking_ms, total_ms
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp, row.RequestID, row.AppID, string(row.Status), string(row.Platform), string(row.Language),
		row.UserAgent, row.Origin, row.DeviceType, row.Country,
		row.ContextText, row.ContextTextHash, string(row.ContextTextMode),
		row.ErrorCode, row.ErrorMessage, row.ResponseTimeMs,
		row.AdID, row.AdvertiserID, string(row.Format), string(row.Record.Algorithm),
		row.Record.OppScore, string(row.Record.OppIntent), int32(row.Record.CandidateCount), row.Record.FinalScore,
		row.Record.ScoreBreakdown.BaseScore, row.Record.ScoreBreakdown.RelevanceBoost,
		row.Record.ScoreBreakdown.FatiguePenalty, row.Record.ScoreBreakdown.FormatPenalty,
		row.Record.ScoreBreakdown.ExplorationBonus,
		fallback, row.Record.PhaseTimings.OpportunityMs, row.Record.PhaseTimings.CandidateMs,
		row.Record.PhaseTimings.RankingMs, row.Record.PhaseTimings.TotalMs,
	)
	if err != nil {
		return fmt.Errorf("insert ad_request: %w", err)
	}
	return nil
}

// FillStats is an aggregate over the request log used by the MCP tools.
type FillStats struct {
	AppID        string  `json:"app_id"`
	Requests     int64   `json:"requests"`
	Served       int64   `json:"served"`
	NoFill       int64   `json:"no_fill"`
	FillRate     float64 `json:"fill_rate"`
	AvgTotalMs   float64 `json:"avg_total_ms"`
	FallbackRate float64 `json:"fallback_rate"`
}

// FillRateStats aggregates fill rate and latency for an app since the given
// time. An empty appID aggregates across all apps.
func (a *Analytics) FillRateStats(ctx context.Context, appID string, since time.Time) (FillStats, error) {
	if a == nil || a.DB == nil {
		return FillStats{}, ErrUnavailable
	}
	query := `SELECT
        count() AS requests,
        countIf(status = 'success') AS served,
        countIf(status = 'no_fill') AS no_fill,
        avg(total_ms) AS avg_total_ms,
        countIf(fallback_used = 1) / count() AS fallback_rate
    FROM ad_requests WHERE timestamp >= ?`
	args := []any{since}
	if appID != "" {
		query += ` AND app_id = ?`
		args = append(args, appID)
	}

	var s FillStats
	s.AppID = appID
	row := a.DB.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&s.Requests, &s.Served, &s.NoFill, &s.AvgTotalMs, &s.FallbackRate); err != nil {
		return FillStats{}, fmt.Errorf("fill rate stats: %w", err)
	}
	if s.Requests > 0 {
		s.FillRate = float64(s.Served) / float64(s.Requests)
	}
	return s, nil
}

// IntentMix is the request count per opportunity intent bucket.
type IntentMix struct {
	Intent   string `json:"intent"`
	Requests int64  `json:"requests"`
}

// IntentMixStats returns the intent distribution for an app since the given
// time.
func (a *Analytics) IntentMixStats(ctx context.Context, appID string, since time.Time) ([]IntentMix, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT opp_intent, count() FROM ad_requests
        WHERE timestamp >= ? AND algorithm_version = 'v2'`
	args := []any{since}
	if appID != "" {
		query += ` AND app_id = ?`
		args = append(args, appID)
	}
	query += ` GROUP BY opp_intent ORDER BY count() DESC`

	rows, err := a.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("intent mix stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IntentMix
	for rows.Next() {
		var m IntentMix
		if err := rows.Scan(&m.Intent, &m.Requests); err != nil {
			return nil, fmt.Errorf("scan intent mix: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close shuts down the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
