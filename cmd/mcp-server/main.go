package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/analytics"
	"github.com/ceedads/addecision/internal/config"
)

// GetFillStatsInput selects the fill-rate aggregation window. An empty app_id
// aggregates across all apps.
type GetFillStatsInput struct {
	AppID string `json:"app_id,omitempty"`
	Hours int    `json:"hours,omitempty"`
}

type GetFillStatsOutput struct {
	Stats analytics.FillStats `json:"stats"`
}

type GetIntentMixInput struct {
	AppID string `json:"app_id,omitempty"`
	Hours int    `json:"hours,omitempty"`
}

type GetIntentMixOutput struct {
	Mix []analytics.IntentMix `json:"mix"`
}

// StatsServer holds the dependencies for the decision-log tools.
type StatsServer struct {
	analytics *analytics.Analytics
	logger    *zap.Logger
}

func sinceFromHours(hours int) time.Time {
	if hours <= 0 {
		hours = 24
	}
	return time.Now().Add(-time.Duration(hours) * time.Hour)
}

// GetFillStats reports request, fill and fallback rates from the request log.
func (s *StatsServer) GetFillStats(ctx context.Context, req *mcp.CallToolRequest, input GetFillStatsInput) (*mcp.CallToolResult, GetFillStatsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats, err := s.analytics.FillRateStats(ctx, input.AppID, sinceFromHours(input.Hours))
	if err != nil {
		s.logger.Error("fill stats query failed", zap.Error(err), zap.String("app_id", input.AppID))
		return nil, GetFillStatsOutput{}, fmt.Errorf("fill stats: %w", err)
	}
	return nil, GetFillStatsOutput{Stats: stats}, nil
}

// GetIntentMix reports how opportunity assessment bucketed recent traffic.
func (s *StatsServer) GetIntentMix(ctx context.Context, req *mcp.CallToolRequest, input GetIntentMixInput) (*mcp.CallToolResult, GetIntentMixOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mix, err := s.analytics.IntentMixStats(ctx, input.AppID, sinceFromHours(input.Hours))
	if err != nil {
		s.logger.Error("intent mix query failed", zap.Error(err), zap.String("app_id", input.AppID))
		return nil, GetIntentMixOutput{}, fmt.Errorf("intent mix: %w", err)
	}
	if mix == nil {
		mix = []analytics.IntentMix{}
	}
	return nil, GetIntentMixOutput{Mix: mix}, nil
}

func main() {
	// Logs go to stderr so stdout stays clean for the stdio transport.
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("addecision-mcp").With(zap.String("service", "addecision-mcp"))

	cfg := config.Load()

	ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN)
	if err != nil {
		logger.Fatal("connect clickhouse", zap.Error(err))
	}
	defer ch.Close()
	logger.Info("connected to clickhouse")

	statsServer := &StatsServer{analytics: ch, logger: logger}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "addecision",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_fill_stats",
		Description: "Fill rate, no-fill rate, fallback rate and average decision latency from the request log",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"app_id": map[string]interface{}{
					"type":        "string",
					"description": "App to aggregate (optional, all apps if omitted)",
				},
				"hours": map[string]interface{}{
					"type":        "integer",
					"description": "Lookback window in hours (optional, defaults to 24)",
				},
			},
		},
	}, statsServer.GetFillStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_intent_mix",
		Description: "Distribution of opportunity intent buckets over recent decisions",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"app_id": map[string]interface{}{
					"type":        "string",
					"description": "App to aggregate (optional, all apps if omitted)",
				},
				"hours": map[string]interface{}{
					"type":        "integer",
					"description": "Lookback window in hours (optional, defaults to 24)",
				},
			},
		},
	}, statsServer.GetIntentMix)

	logger.Info("mcp server running via stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
