package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/circuitbreaker"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/client"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/lifecycle"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/logistics"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/restaurants"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/traffic"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/validation"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/wines"
)

const (
	// DefaultCity is looked up when /restaurants is called without a city.
	DefaultCity = "San Francisco"

	maxCityLen = 100
)

// RestaurantService looks up restaurants for a city through the time-boxed cache.
type RestaurantService interface {
	GetOrFetch(ctx context.Context, city string, window time.Duration) (restaurants.Result, error)
}

// LogisticsService builds flight logistics snapshots.
type LogisticsService interface {
	Snapshot(ctx context.Context) (*logistics.Result, error)
	Invalidate(ctx context.Context) error
}

// WineCatalog filters the static wine catalog.
type WineCatalog interface {
	Columns() []string
	Filter(f wines.Filter) []wines.Wine
}

// Breaker reports a circuit breaker's state for /health.
type Breaker interface {
	Component() string
	State() circuitbreaker.State
}

// HealthConfig holds what /health evaluates beyond the draining flag.
type HealthConfig struct {
	// Window is how far back upstream and request outcomes are considered.
	Window time.Duration
	// ErrorPct is the failure percentage at or above which a provider, or the
	// request path as a whole, is reported degraded. 0 disables the check.
	ErrorPct int
	Breakers []Breaker
	// CachePing, when set, checks memo backend reachability (memcached).
	CachePing func() error
	// APIKeyCheck, when set, validates the forecast provider key. A rejected key
	// degrades the service; other failures only show in checks.
	APIKeyCheck func(ctx context.Context) error
	Version     string
}

// Services are the domain dependencies the handlers call.
type Services struct {
	Restaurants     RestaurantService
	Logistics       LogisticsService
	Wines           WineCatalog
	FreshnessWindow time.Duration
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	services         Services
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil healthConfig reports only draining.
func NewHandler(services Services, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if services.FreshnessWindow <= 0 {
		services.FreshnessWindow = restaurants.DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		services:     services,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

type restaurantsResponse struct {
	City        string                    `json:"city"`
	Source      restaurants.Source        `json:"source"`
	Degraded    bool                      `json:"degraded"`
	Reason      string                    `json:"reason,omitempty"`
	Persisted   bool                      `json:"persisted"`
	Count       int                       `json:"count"`
	Restaurants []models.RestaurantRecord `json:"restaurants"`
}

// GetRestaurants handles GET /restaurants?city=.
func (h *Handler) GetRestaurants(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	city := DefaultCity
	if query.Has("city") {
		city = query.Get("city")
	}
	city, err := validation.ValidateCity(city, maxCityLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	res, err := h.services.Restaurants.GetOrFetch(r.Context(), city, h.services.FreshnessWindow)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	records := res.Records
	if records == nil {
		records = []models.RestaurantRecord{}
	}
	writeJSON(w, http.StatusOK, restaurantsResponse{
		City:        res.City,
		Source:      res.Source,
		Degraded:    res.Degraded,
		Reason:      res.Reason,
		Persisted:   res.Persisted,
		Count:       len(records),
		Restaurants: records,
	})
}

type logisticsResponse struct {
	BestFlight           models.BestFlight      `json:"bestFlight"`
	ArrivalTimeFormatted string                 `json:"arrivalTimeFormatted"`
	ArrivalWeather       models.WeatherSnapshot `json:"arrivalWeather"`
	Traffic              []models.RouteSection  `json:"traffic"`
	Offers               []models.FlightOffer   `json:"offers"`
	Degraded             map[string]string      `json:"degraded"`
	SnapshotPath         string                 `json:"snapshotPath,omitempty"`
	Persisted            bool                   `json:"persisted"`
}

// GetLogistics handles GET /logistics. ?refresh=true drops memoized upstream data first.
// The request can park on the rate gate; its route carries a longer timeout.
func (h *Handler) GetLogistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if err := h.services.Logistics.Invalidate(ctx); err != nil {
			observability.LoggerFromContext(ctx, h.logger).Warn("logistics invalidate failed", zap.Error(err))
		}
	}

	res, err := h.services.Logistics.Snapshot(ctx)
	if err != nil {
		var failure *logistics.Failure
		if errors.As(err, &failure) {
			writeLogisticsFailure(w, r, failure)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	sections := res.Traffic
	if sections == nil {
		sections = []models.RouteSection{}
	}
	writeJSON(w, http.StatusOK, logisticsResponse{
		BestFlight:           res.Best,
		ArrivalTimeFormatted: logistics.FormatArrival(res.Best.ArrivalTime),
		ArrivalWeather:       res.Weather,
		Traffic:              sections,
		Offers:               res.Offers,
		Degraded:             res.Degraded,
		SnapshotPath:         res.SnapshotPath,
		Persisted:            res.Persisted,
	})
}

func writeLogisticsFailure(w http.ResponseWriter, r *http.Request, f *logistics.Failure) {
	switch f.Reason {
	case logistics.ReasonNoOffers:
		writeError(w, r, http.StatusNotFound, "NO_OFFERS", "No flight offers available.")
	case logistics.ReasonSelectionError:
		writeError(w, r, http.StatusUnprocessableEntity, "SELECTION_ERROR", "No best flight found.")
	default:
		writeError(w, r, http.StatusBadGateway, "FETCH_ERROR", "Failed to fetch flight data.")
	}
}

type winesResponse struct {
	Count   int                 `json:"count"`
	Columns []string            `json:"columns"`
	Wines   []map[string]string `json:"wines"`
}

// GetWines handles GET /wines with optional wine_type, supplier and numeric bound filters.
func (h *Handler) GetWines(w http.ResponseWriter, r *http.Request) {
	filter, err := parseWineFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	matched := h.services.Wines.Filter(filter)
	rows := make([]map[string]string, 0, len(matched))
	for _, wine := range matched {
		rows = append(rows, wine.Fields)
	}
	writeJSON(w, http.StatusOK, winesResponse{
		Count:   len(rows),
		Columns: h.services.Wines.Columns(),
		Wines:   rows,
	})
}

func parseWineFilter(r *http.Request) (wines.Filter, error) {
	q := r.URL.Query()
	f := wines.Filter{
		WineType: strings.TrimSpace(q.Get("wine_type")),
		Supplier: strings.TrimSpace(q.Get("supplier")),
	}
	bounds := []struct {
		param string
		dst   **float64
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
		{"min_score", &f.MinScore},
		{"max_score", &f.MaxScore},
	}
	for _, b := range bounds {
		raw := strings.TrimSpace(q.Get(b.param))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return wines.Filter{}, errors.New(b.param + " must be a number")
		}
		*b.dst = &v
	}
	return f, nil
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: draining, open circuits, a rejected
// API key, per-provider upstream failure rate, request failure rate. Cache
// reachability is reported in checks without changing the status; the memo
// slots fail open.
func (h *Handler) computeHealthStatus(ctx context.Context) (healthResult, map[string]string) {
	checks := make(map[string]string)
	if lifecycle.IsDraining() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}, checks
	}
	cfg := h.healthConfig

	if cfg.CachePing != nil {
		if cfg.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	result := healthResult{"healthy", http.StatusOK, ""}
	for _, b := range cfg.Breakers {
		switch b.State() {
		case circuitbreaker.StateOpen:
			checks[b.Component()] = "circuit_open"
			result = healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
		case circuitbreaker.StateHalfOpen:
			checks[b.Component()] = "recovering"
		default:
			checks[b.Component()] = "healthy"
		}
	}
	if cfg.APIKeyCheck != nil {
		err := cfg.APIKeyCheck(ctx)
		switch {
		case err == nil:
			checks["forecast_api_key"] = "valid"
		case errors.Is(err, client.ErrInvalidAPIKey):
			checks["forecast_api_key"] = "invalid"
			if result.status == "healthy" {
				result = healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
			}
		default:
			checks["forecast_api_key"] = "unreachable"
		}
	}
	if result.status != "healthy" || cfg.ErrorPct <= 0 || cfg.Window <= 0 {
		return result, checks
	}

	for _, rate := range traffic.UpstreamRates(cfg.Window) {
		if breached(rate.Failures, rate.Total, cfg.ErrorPct) {
			checks[rate.Provider] = "unhealthy"
			result = healthResult{"degraded", http.StatusServiceUnavailable, "upstream_error_rate"}
		}
	}
	if result.status != "healthy" {
		return result, checks
	}
	if failures, total := traffic.ErrorRate(cfg.Window); breached(failures, total, cfg.ErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}, checks
	}
	return result, checks
}

func breached(failures, total, pct int) bool {
	return total > 0 && failures*100 >= total*pct
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. requestId is the correlation ID, if any.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps errors the services return outside their domain failures:
// an expired request deadline, a gone client, or a programming error.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request deadline exceeded", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
	case errors.Is(err, context.Canceled):
		logger.Debug("request canceled", zap.String("path", r.URL.Path))
		writeError(w, r, http.StatusServiceUnavailable, "CANCELED", "Request canceled")
	default:
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Internal error")
	}
}
