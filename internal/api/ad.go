package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/analytics"
	"github.com/ceedads/addecision/internal/middleware"
	"github.com/ceedads/addecision/internal/models"
	"github.com/ceedads/addecision/internal/observability"
)

var tracer = otel.Tracer("addecision")

// adRequestPayload is the SDK's request envelope for POST /v2/ad.
type adRequestPayload struct {
	AppID       string `json:"appId"`
	Platform    string `json:"platform"`
	Language    string `json:"language"`
	ContextText string `json:"contextText,omitempty"`
}

// adResponsePayload is the envelope returned to the SDK. Ad is null on
// no-fill. Meta is only populated for debug requests.
type adResponsePayload struct {
	RequestID string                 `json:"requestId"`
	Ad        *models.ResolvedAd     `json:"ad"`
	Meta      *models.DecisionRecord `json:"meta,omitempty"`
}

func decodeAdRequest(r *http.Request) (*adRequestPayload, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	defer func() {
		_ = r.Body.Close()
	}()

	var req adRequestPayload
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &req, nil
}

func validAdRequest(req *adRequestPayload) bool {
	if req.AppID == "" {
		return false
	}
	switch models.Platform(req.Platform) {
	case models.PlatformWeb, models.PlatformIOS:
	default:
		return false
	}
	switch models.Language(req.Language) {
	case models.LanguageEng, models.LanguageJpn:
	default:
		return false
	}
	return true
}

// GetAdHandler handles POST /v2/ad requests.
func (s *Server) GetAdHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GetAdHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/v2/ad"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "ad"
	const method = "POST"

	payload, err := decodeAdRequest(r)
	if err != nil {
		logger.Error("decode request", zap.Error(err), zap.String("event_type", "ad_request"))
		s.logRejected(ctx, logger, r, nil, "bad_request_body", "request body is not valid json", start)
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !validAdRequest(payload) {
		logger.Error("missing or invalid fields", zap.String("event_type", "ad_request"))
		s.logRejected(ctx, logger, r, payload, "invalid_request", "appId, platform and language required", start)
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "appId, platform and language required", http.StatusBadRequest)
		return
	}

	app := s.Inventory.GetApp(payload.AppID)
	if app == nil || !app.Active {
		logger.Error("unknown app", zap.String("app_id", payload.AppID))
		s.logRejected(ctx, logger, r, payload, "unknown_app", "unknown or inactive app", start)
		s.Metrics.IncrementRequests(endpoint, method, "404")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "unknown app", http.StatusNotFound)
		return
	}

	requestID := uuid.NewString()
	userAgent := r.Header.Get("User-Agent")
	origin := r.Header.Get("Origin")
	deviceType := deviceTypeFromUA(userAgent)
	country := s.countryFromRequest(r)

	req := models.DecisionRequest{
		AppID:       payload.AppID,
		Platform:    models.Platform(payload.Platform),
		Language:    models.Language(payload.Language),
		ContextText: payload.ContextText,
		Country:     country,
		DeviceType:  deviceType,
		ReceivedAt:  start,
	}

	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("app_id", req.AppID),
		attribute.String("platform", string(req.Platform)),
		attribute.String("language", string(req.Language)),
	)

	var (
		ad  *models.ResolvedAd
		rec models.DecisionRecord
	)
	if app.LegacyDecision {
		ad, rec = s.Engine.DecideLegacy(ctx, req)
	} else {
		ad, rec = s.Engine.Decide(ctx, req)
	}

	status := models.StatusNoFill
	if ad != nil {
		status = models.StatusSuccess
		span.SetAttributes(
			attribute.String("ad.result", "fill"),
			attribute.String("ad.id", ad.ID),
			attribute.Float64("ad.final_score", rec.FinalScore),
		)
		// Count the exposure now that the ad is actually going out.
		if s.Fatigue != nil {
			if _, err := s.Fatigue.Increment(ctx, req.AppID, ad.ID); err != nil {
				logger.Error("exposure increment failed", zap.Error(err), zap.String("ad_id", ad.ID))
			}
		}
	} else {
		span.SetAttributes(attribute.String("ad.result", "no_fill"))
	}

	if observability.ShouldSample(observability.SamplingRate()) {
		logger.Info("ad decision",
			zap.String("request_id", requestID),
			zap.String("app_id", req.AppID),
			zap.String("status", string(status)),
			zap.String("intent", string(rec.OppIntent)),
			zap.String("event_type", "ad_request"))
	}

	s.logDecision(ctx, logger, requestID, app, req, userAgent, origin, status, ad, rec, time.Since(start))

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))

	resp := adResponsePayload{RequestID: requestID, Ad: ad}
	if r.URL.Query().Get("debug") == "1" {
		resp.Meta = &rec
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("encode response", zap.Error(err))
	}
}

// logDecision writes the request-log row. Logging failures never affect the
// response already being served.
func (s *Server) logDecision(ctx context.Context, logger *zap.Logger, requestID string, app *models.App, req models.DecisionRequest, userAgent, origin string, status models.RequestStatus, ad *models.ResolvedAd, rec models.DecisionRecord, elapsed time.Duration) {
	stored, hash := redactContext(req.ContextText, app.ContextMode, s.Config.ContextTextMaxLen)
	row := analytics.RequestLog{
		Timestamp:       req.ReceivedAt,
		RequestID:       requestID,
		AppID:           req.AppID,
		Status:          status,
		Platform:        req.Platform,
		Language:        req.Language,
		UserAgent:       userAgent,
		Origin:          origin,
		DeviceType:      req.DeviceType,
		Country:         req.Country,
		ContextText:     stored,
		ContextTextHash: hash,
		ContextTextMode: app.ContextMode,
		ResponseTimeMs:  float64(elapsed.Nanoseconds()) / 1e6,
		Record:          rec,
	}
	if ad != nil {
		row.AdID = ad.ID
		row.AdvertiserID = ad.AdvertiserID
		row.Format = ad.Format
	}
	if err := s.Analytics.RecordDecision(ctx, row); err != nil && err != analytics.ErrUnavailable {
		logger.Error("record decision", zap.Error(err), zap.String("request_id", requestID))
	}
}

// logRejected writes an error-status row for a request that never reached
// the decision core. No app policy applies yet, so only the context hash is
// stored. payload may be nil when the body failed to decode.
func (s *Server) logRejected(ctx context.Context, logger *zap.Logger, r *http.Request, payload *adRequestPayload, errorCode, errorMessage string, start time.Time) {
	row := analytics.RequestLog{
		Timestamp:       start,
		RequestID:       uuid.NewString(),
		Status:          models.StatusError,
		UserAgent:       r.Header.Get("User-Agent"),
		Origin:          r.Header.Get("Origin"),
		ContextTextMode: models.ContextTextHashed,
		ErrorCode:       errorCode,
		ErrorMessage:    errorMessage,
		ResponseTimeMs:  float64(time.Since(start).Nanoseconds()) / 1e6,
	}
	if payload != nil {
		row.AppID = payload.AppID
		row.Platform = models.Platform(payload.Platform)
		row.Language = models.Language(payload.Language)
		_, row.ContextTextHash = redactContext(payload.ContextText, models.ContextTextHashed, 0)
	}
	if err := s.Analytics.RecordDecision(ctx, row); err != nil && err != analytics.ErrUnavailable {
		logger.Error("record rejected request", zap.Error(err), zap.String("error_code", errorCode))
	}
}

// redactContext applies the app's context text policy to the logged copy.
// The hash is always stored so requests stay correlatable.
func redactContext(text string, mode models.ContextTextMode, maxLen int) (stored, hash string) {
	if text == "" {
		return "", ""
	}
	sum := sha256.Sum256([]byte(text))
	hash = hex.EncodeToString(sum[:])
	switch mode {
	case models.ContextTextFull:
		stored = text
	case models.ContextTextHashed:
		stored = ""
	default: // truncated
		runes := []rune(text)
		if maxLen > 0 && len(runes) > maxLen {
			runes = runes[:maxLen]
		}
		stored = string(runes)
	}
	return stored, hash
}

// deviceTypeFromUA maps a User-Agent to the coarse device classes static
// targeting uses.
func deviceTypeFromUA(ua string) string {
	if ua == "" {
		return ""
	}
	switch uasurfer.Parse(ua).DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// countryFromRequest resolves the requester's country from X-Forwarded-For
// or the remote address.
func (s *Server) countryFromRequest(r *http.Request) string {
	if s.GeoIP == nil {
		return ""
	}
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr == "" {
		ipStr, _, _ = net.SplitHostPort(r.RemoteAddr)
	} else if idx := strings.Index(ipStr, ","); idx != -1 {
		ipStr = ipStr[:idx]
	}
	if ip := net.ParseIP(strings.TrimSpace(ipStr)); ip != nil {
		return s.GeoIP.Country(ip)
	}
	return ""
}
