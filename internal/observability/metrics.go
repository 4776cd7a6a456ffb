package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases; /logistics includes the rate gate.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, logistics requests queued behind the gate.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate per provider (places, flights, forecast, routing). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per provider. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures that were absorbed into a degraded result. Watch for: any sustained rate.
	UpstreamDegradedTotal *prometheus.CounterVec

	// Restaurant lookups by result (hit, miss, invalid). Hit rate = hit/(hit+miss).
	RestaurantCacheLookupsTotal *prometheus.CounterVec

	// Misses that overlapped another in-flight miss for the same city. Each one is a duplicate upstream fetch.
	RestaurantCacheConcurrentMissesTotal prometheus.Counter

	// Memo slot lookups by slot (offers, weather, traffic) and result (hit, miss).
	MemoSlotLookupsTotal *prometheus.CounterVec

	// Table writes by op (append, overwrite) and result.
	PersistWritesTotal *prometheus.CounterVec

	// Table write latency.
	PersistWriteDuration *prometheus.HistogramVec

	// Time spent blocked on the logistics rate gate.
	RateGateWaitSeconds prometheus.Histogram

	// Logistics snapshots by result (success, fetch_error, no_offers, selection_error, canceled).
	LogisticsSnapshotsTotal *prometheus.CounterVec

	// Circuit breaker transitions per provider. Watch for: flapping.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker state per provider: 0=closed, 1=open, 2=half_open.
	CircuitBreakerState *prometheus.GaugeVec

	// Warming runs and per-city failures.
	CacheWarmingRunsTotal     prometheus.Counter
	CacheWarmingFailuresTotal prometheus.Counter
	CacheWarmingDuration      prometheus.Histogram

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	UpstreamDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamDegradedTotal",
			Help: "Upstream failures replaced by an empty or placeholder result",
		},
		[]string{"provider", "category"},
	)
	RestaurantCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurantCacheLookupsTotal",
			Help: "Restaurant cache lookups by result",
		},
		[]string{"result"},
	)
	RestaurantCacheConcurrentMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurantCacheConcurrentMissesTotal",
			Help: "Restaurant cache misses that overlapped another miss for the same city",
		},
	)
	MemoSlotLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoSlotLookupsTotal",
			Help: "Memoized slot lookups by slot and result",
		},
		[]string{"slot", "result"},
	)
	PersistWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistWritesTotal",
			Help: "Tabular file writes by op and result",
		},
		[]string{"op", "result"},
	)
	PersistWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "persistWriteDurationSeconds",
			Help:    "Tabular file write latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)
	RateGateWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rateGateWaitSeconds",
			Help:    "Time spent waiting on the logistics rate gate",
			Buckets: []float64{.1, .5, 1, 2, 5, 30, 300, 1800, 5400},
		},
	)
	LogisticsSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logisticsSnapshotsTotal",
			Help: "Logistics snapshots by result",
		},
		[]string{"result"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions by provider",
		},
		[]string{"provider", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state by provider (0=closed, 1=open, 2=half_open)",
		},
		[]string{"provider"},
	)
	CacheWarmingRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingRunsTotal",
			Help: "Total number of cache warming passes",
		},
	)
	CacheWarmingFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingFailuresTotal",
			Help: "Cities that failed to refresh during warming",
		},
	)
	CacheWarmingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of a cache warming pass in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamDegradedTotal,
		RestaurantCacheLookupsTotal, RestaurantCacheConcurrentMissesTotal,
		MemoSlotLookupsTotal,
		PersistWritesTotal, PersistWriteDuration,
		RateGateWaitSeconds, LogisticsSnapshotsTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
		CacheWarmingRunsTotal, CacheWarmingFailuresTotal, CacheWarmingDuration,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers sliding-window request and denial gauges.
// Call from main after config load.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting the rate-limited path in the sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordDegraded counts an upstream failure that was turned into a fallback value.
func RecordDegraded(provider, category string) {
	UpstreamDegradedTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(category)).Inc()
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	if s == "" {
		return "unknown"
	}
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
