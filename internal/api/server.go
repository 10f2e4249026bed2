package api

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/analytics"
	"github.com/ceedads/addecision/internal/config"
	"github.com/ceedads/addecision/internal/db"
	"github.com/ceedads/addecision/internal/decision/fatigue"
	"github.com/ceedads/addecision/internal/geoip"
	"github.com/ceedads/addecision/internal/models"
	"github.com/ceedads/addecision/internal/observability"
)

// DecisionEngine is the decision core as seen by the HTTP layer.
type DecisionEngine interface {
	Decide(ctx context.Context, req models.DecisionRequest) (*models.ResolvedAd, models.DecisionRecord)
	DecideLegacy(ctx context.Context, req models.DecisionRequest) (*models.ResolvedAd, models.DecisionRecord)
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Engine    DecisionEngine
	Inventory models.InventoryStore
	PG        *db.Postgres
	Analytics analytics.Service
	GeoIP     *geoip.GeoIP
	Fatigue   fatigue.Counter
	Metrics   observability.MetricsRegistry
	Config    config.Config

	reloadMu sync.Mutex
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, engine DecisionEngine, inventory models.InventoryStore, pg *db.Postgres, analyticsSvc analytics.Service, geo *geoip.GeoIP, fatigueCounter fatigue.Counter, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if analyticsSvc == nil {
		analyticsSvc = analytics.NoopService{}
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:    logger,
		Engine:    engine,
		Inventory: inventory,
		PG:        pg,
		Analytics: analyticsSvc,
		GeoIP:     geo,
		Fatigue:   fatigueCounter,
		Metrics:   metrics,
		Config:    cfg,
	}
}

// Reload refreshes apps, advertisers and ads from Postgres.
func (s *Server) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}

	apps, err := s.PG.LoadApps()
	if err != nil {
		return fmt.Errorf("load apps: %w", err)
	}
	advertisers, err := s.PG.LoadAdvertisers()
	if err != nil {
		return fmt.Errorf("load advertisers: %w", err)
	}
	cands, err := s.PG.LoadCandidates()
	if err != nil {
		return fmt.Errorf("load ads: %w", err)
	}
	if apps == nil {
		apps = []models.App{}
	}
	if advertisers == nil {
		advertisers = []models.Advertiser{}
	}
	if cands == nil {
		cands = []models.Candidate{}
	}

	if err := s.Inventory.ReloadAll(apps, advertisers, cands); err != nil {
		return fmt.Errorf("reload inventory: %w", err)
	}
	return nil
}
