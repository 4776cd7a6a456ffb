package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
)

// RouterConfig holds the per-route middleware settings.
type RouterConfig struct {
	// Limiter guards the data routes. nil disables rate limiting.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	// LogisticsTimeout must exceed the rate gate interval or every gated request times out.
	LogisticsTimeout time.Duration
}

// NewRouter wires the handler into a mux router. /health and /metrics skip the
// rate limiter and timeouts.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	data := router.NewRoute().Subrouter()
	data.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		data.Handle("/restaurants", withTimeout(cfg.RequestTimeout, h.GetRestaurants)).Methods(http.MethodGet)
		data.Handle("/wines", withTimeout(cfg.RequestTimeout, h.GetWines)).Methods(http.MethodGet)
	} else {
		data.HandleFunc("/restaurants", h.GetRestaurants).Methods(http.MethodGet)
		data.HandleFunc("/wines", h.GetWines).Methods(http.MethodGet)
	}
	if cfg.LogisticsTimeout > 0 {
		data.Handle("/logistics", withTimeout(cfg.LogisticsTimeout, h.GetLogistics)).Methods(http.MethodGet)
	} else {
		data.HandleFunc("/logistics", h.GetLogistics).Methods(http.MethodGet)
	}
	return router
}

func withTimeout(d time.Duration, fn http.HandlerFunc) http.Handler {
	return TimeoutMiddleware(d)(fn)
}
