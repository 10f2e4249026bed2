package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/analytics"
	"github.com/ceedads/addecision/internal/api"
	"github.com/ceedads/addecision/internal/config"
	"github.com/ceedads/addecision/internal/db"
	"github.com/ceedads/addecision/internal/decision"
	"github.com/ceedads/addecision/internal/decision/candidates"
	"github.com/ceedads/addecision/internal/decision/fatigue"
	"github.com/ceedads/addecision/internal/decision/opportunity"
	"github.com/ceedads/addecision/internal/decision/ranking"
	"github.com/ceedads/addecision/internal/geoip"
	"github.com/ceedads/addecision/internal/middleware"
	"github.com/ceedads/addecision/internal/models"
	"github.com/ceedads/addecision/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLogger(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	inventory := models.NewInMemoryInventory()

	// Exposure counting, analytics and geo enrichment degrade rather than
	// block startup. Decisions must keep serving without them.
	var counter fatigue.Counter
	if store, err := db.InitRedis(cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, using in-process exposure counts", zap.Error(err))
		counter = fatigue.NewMemoryCounter(cfg.FatigueWindow)
	} else {
		defer store.Close()
		counter = fatigue.NewRedisCounter(store, cfg.FatigueWindow)
	}

	var analyticsSvc analytics.Service
	if ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN); err != nil {
		logger.Warn("clickhouse unavailable, request logging disabled", zap.Error(err))
		analyticsSvc = analytics.NoopService{}
	} else {
		analyticsSvc = ch
	}
	defer analyticsSvc.Close()

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		logger.Warn("geoip unavailable, country resolution disabled", zap.Error(err))
	} else {
		defer func() { _ = geoSvc.Close() }()
	}

	metrics := observability.NewPrometheusRegistry()

	assessor := opportunity.New(opportunity.Config{
		SensitiveTerms:     cfg.SensitiveTerms,
		CommercialKeywords: cfg.CommercialKeywords,
		KeywordWeight:      cfg.KeywordWeight,
		QuestionWeight:     cfg.QuestionWeight,
		LengthWeight:       cfg.LengthWeight,
		HighThreshold:      cfg.HighIntentThreshold,
		MediumThreshold:    cfg.MedIntentThreshold,
		LowThreshold:       cfg.LowIntentThreshold,
	})
	generator := candidates.New(candidates.InventorySource{Store: inventory}, cfg.MaxCandidates, cfg.FallbackCacheMaxSize, logger)
	ranker := ranking.New(ranking.Weights{
		Relevance:      cfg.RelevanceWeight,
		Fatigue:        cfg.FatigueWeight,
		FormatMismatch: cfg.FormatMismatchPenalty,
		Epsilon:        cfg.ExplorationEpsilon,
	}, counter, time.Now().UnixNano(), logger)

	engine := decision.NewEngine(assessor, generator, ranker, decision.Config{
		Budget:           cfg.DecisionBudget,
		Grace:            cfg.PhaseGrace,
		OpportunityShare: cfg.OpportunityShare,
		CandidateShare:   cfg.CandidateShare,
	}, metrics, logger)

	srvDeps := api.NewServer(logger, engine, inventory, pg, analyticsSvc, geoSvc, counter, metrics, cfg)
	if err := srvDeps.Reload(); err != nil {
		return fmt.Errorf("initial inventory load: %w", err)
	}

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger))
	r.Use(api.WithCORS(cfg.AllowedOrigins))
	r.HandleFunc("/v2/ad", srvDeps.GetAdHandler).Methods("POST", "OPTIONS")
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", srvDeps.ReloadHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "http.server"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("decision server running", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("decision server stopped")
	return nil
}
