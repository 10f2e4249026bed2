package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/models"
)

// Postgres wraps the advertiser inventory database connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the inventory tables if they don't exist. Localized text
// and per-format configs are stored as JSONB, mirroring the trafficking
// system's document shapes.
const schemaSQL = `CREATE TABLE IF NOT EXISTS apps (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    name TEXT NOT NULL,
    platforms TEXT[] NOT NULL DEFAULT '{}',
    languages TEXT[] NOT NULL DEFAULT '{}',
    context_mode TEXT NOT NULL DEFAULT 'truncated',
    legacy_decision BOOLEAN NOT NULL DEFAULT FALSE,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS advertisers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS ads (
    id TEXT PRIMARY KEY,
    advertiser_id TEXT REFERENCES advertisers(id),
    format TEXT NOT NULL,
    title JSONB NOT NULL DEFAULT '{}',
    description JSONB NOT NULL DEFAULT '{}',
    cta_text JSONB NOT NULL DEFAULT '{}',
    cta_url TEXT NOT NULL DEFAULT '',
    lead_gen_config JSONB,
    static_config JSONB,
    followup_config JSONB,
    keywords TEXT[] NOT NULL DEFAULT '{}',
    base_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    platforms TEXT[] NOT NULL DEFAULT '{}',
    languages TEXT[] NOT NULL DEFAULT '{}',
    active BOOLEAN NOT NULL DEFAULT TRUE
);`

// InitPostgres opens an instrumented connection and ensures the schema.
func InitPostgres(dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*Postgres, error) {
	db, err := otelsql.Open("postgres", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	zap.L().Info("connected to postgres")
	return &Postgres{DB: db}, nil
}

// LoadApps reads all registered apps.
func (p *Postgres) LoadApps() ([]models.App, error) {
	rows, err := p.DB.Query(`SELECT id, org_id, name, platforms, languages, context_mode, legacy_decision, active FROM apps`)
	if err != nil {
		return nil, fmt.Errorf("load apps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []models.App
	for rows.Next() {
		var a models.App
		var platforms, languages []string
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, pq.Array(&platforms), pq.Array(&languages), &a.ContextMode, &a.LegacyDecision, &a.Active); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		a.Platforms = toPlatforms(platforms)
		a.Languages = toLanguages(languages)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// LoadAdvertisers reads all advertisers.
func (p *Postgres) LoadAdvertisers() ([]models.Advertiser, error) {
	rows, err := p.DB.Query(`SELECT id, name, active FROM advertisers`)
	if err != nil {
		return nil, fmt.Errorf("load advertisers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var advertisers []models.Advertiser
	for rows.Next() {
		var a models.Advertiser
		if err := rows.Scan(&a.ID, &a.Name, &a.Active); err != nil {
			return nil, fmt.Errorf("scan advertiser: %w", err)
		}
		advertisers = append(advertisers, a)
	}
	return advertisers, rows.Err()
}

// LoadCandidates reads all ads joined with their advertiser names.
func (p *Postgres) LoadCandidates() ([]models.Candidate, error) {
	rows, err := p.DB.Query(`SELECT a.id, a.advertiser_id, COALESCE(adv.name, ''), a.format,
        a.title, a.description, a.cta_text, a.cta_url,
        a.lead_gen_config, a.static_config, a.followup_config,
        a.keywords, a.base_score, a.platforms, a.languages, a.active
        FROM ads a LEFT JOIN advertisers adv ON adv.id = a.advertiser_id`)
	if err != nil {
		return nil, fmt.Errorf("load ads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var title, description, ctaText []byte
		var leadGen, static, followup []byte
		var keywords, platforms, languages []string
		if err := rows.Scan(&c.ID, &c.AdvertiserID, &c.AdvertiserName, &c.Format,
			&title, &description, &ctaText, &c.CTAURL,
			&leadGen, &static, &followup,
			pq.Array(&keywords), &c.BaseScore, pq.Array(&platforms), pq.Array(&languages), &c.Active); err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		c.Title = parseLocalized(title)
		c.Description = parseLocalized(description)
		c.CTAText = parseLocalized(ctaText)
		if len(leadGen) > 0 {
			var cfg models.LeadGenConfig
			if err := json.Unmarshal(leadGen, &cfg); err == nil {
				c.LeadGenConfig = &cfg
			}
		}
		if len(static) > 0 {
			var cfg models.StaticConfig
			if err := json.Unmarshal(static, &cfg); err == nil {
				c.StaticConfig = &cfg
			}
		}
		if len(followup) > 0 {
			var cfg models.FollowupConfig
			if err := json.Unmarshal(followup, &cfg); err == nil {
				c.FollowupConfig = &cfg
			}
		}
		c.Keywords = keywords
		c.Platforms = toPlatforms(platforms)
		c.Languages = toLanguages(languages)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// Close shuts down the database connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func parseLocalized(raw []byte) models.LocalizedText {
	lt := models.LocalizedText{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &lt)
	}
	return lt
}

func toPlatforms(in []string) []models.Platform {
	out := make([]models.Platform, 0, len(in))
	for _, s := range in {
		out = append(out, models.Platform(s))
	}
	return out
}

func toLanguages(in []string) []models.Language {
	out := make([]models.Language, 0, len(in))
	for _, s := range in {
		out = append(out, models.Language(s))
	}
	return out
}
