// Package logistics builds the flight logistics snapshot: the cheapest flight offer
// for a fixed route, the forecast at its arrival and road traffic from the arrival
// airport, exported as one table.
package logistics

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/cache"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/client"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/store"
)

// ErrFetch marks a snapshot that failed because flight offers could not be fetched.
var ErrFetch = errors.New("fetch error")

// Reason names why a snapshot failed.
type Reason string

const (
	ReasonFetchError     Reason = "fetch error"
	ReasonNoOffers       Reason = "no offers"
	ReasonSelectionError Reason = "selection error"
)

// Failure is the terminal error of a snapshot. It matches ErrFetch, ErrNoOffers or
// ErrSelection with errors.Is according to Reason.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Reason) + ": " + f.Err.Error()
	}
	return string(f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool {
	switch f.Reason {
	case ReasonFetchError:
		return target == ErrFetch
	case ReasonNoOffers:
		return target == ErrNoOffers
	case ReasonSelectionError:
		return target == ErrSelection
	}
	return false
}

// Result is a successful snapshot. Degraded maps a provider name to the reason its
// contribution was replaced by a placeholder or an empty list.
type Result struct {
	Offers       []models.FlightOffer
	Best         models.BestFlight
	Weather      models.WeatherSnapshot
	Traffic      []models.RouteSection
	Degraded     map[string]string
	SnapshotPath string
	Persisted    bool
}

// Config fixes the route the orchestrator reports on.
type Config struct {
	Query            models.FlightQuery
	WeatherLocation  string
	RouteOrigin      models.Coordinate
	RouteDestination models.Coordinate
	// GateInterval is the minimum time between snapshot releases.
	GateInterval time.Duration
	// MemoTTL bounds how long fetched offers, weather and traffic are reused. 0 keeps them until Invalidate.
	MemoTTL time.Duration
	// SnapshotPath is overwritten on every snapshot. Empty disables the export.
	SnapshotPath string
}

// Clients groups the upstreams the orchestrator calls.
type Clients struct {
	Flights  client.FlightClient
	Forecast client.ForecastClient
	Routing  client.RoutingClient
}

// weatherEntry memoizes the forecast for one arrival time.
type weatherEntry struct {
	Arrival  string                 `json:"arrival"`
	Snapshot models.WeatherSnapshot `json:"snapshot"`
}

// Orchestrator produces logistics snapshots. It is safe for concurrent use;
// concurrent snapshots are released one gate interval apart.
type Orchestrator struct {
	clients Clients
	cfg     Config
	gate    *Gate
	logger  *zap.Logger

	offers  *cache.Slot[[]models.FlightOffer]
	weather *cache.Slot[weatherEntry]
	traffic *cache.Slot[[]models.RouteSection]
}

// NewOrchestrator returns an orchestrator whose memo slots live in backend
// (in-process memory when nil).
func NewOrchestrator(clients Clients, backend cache.Backend, cfg Config, logger *zap.Logger) *Orchestrator {
	if backend == nil {
		backend = cache.NewInMemoryBackend()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		clients: clients,
		cfg:     cfg,
		gate:    NewGate(cfg.GateInterval),
		logger:  logger,
		offers:  cache.NewSlot[[]models.FlightOffer]("offers", backend, cfg.MemoTTL),
		weather: cache.NewSlot[weatherEntry]("weather", backend, cfg.MemoTTL),
		traffic: cache.NewSlot[[]models.RouteSection]("traffic", backend, cfg.MemoTTL),
	}
}

// Snapshot fetches (or reuses) offers, waits on the rate gate, selects the cheapest
// offer and enriches it. Errors are *Failure, or the ctx error when ctx ends first.
// Forecast and routing failures degrade the result instead of failing it.
func (o *Orchestrator) Snapshot(ctx context.Context) (*Result, error) {
	logger := observability.LoggerFromContext(ctx, o.logger)
	start := time.Now()

	offers, fetchErr := o.offers.GetOrLoad(ctx, func(ctx context.Context) ([]models.FlightOffer, error) {
		return o.clients.Flights.SearchOffers(ctx, o.cfg.Query)
	})

	if err := o.gate.Wait(ctx); err != nil {
		observability.LogisticsSnapshotsTotal.WithLabelValues("canceled").Inc()
		return nil, err
	}

	if fetchErr != nil {
		category := client.CategorizeError(fetchErr)
		observability.RecordDegraded(client.ProviderFlights, string(category))
		observability.LogisticsSnapshotsTotal.WithLabelValues("fetch_error").Inc()
		logger.Warn("flight offer fetch failed",
			zap.String("category", string(category)),
			zap.Error(fetchErr))
		return nil, &Failure{Reason: ReasonFetchError, Err: fetchErr}
	}

	best, err := SelectBest(offers)
	if err != nil {
		if errors.Is(err, ErrNoOffers) {
			observability.LogisticsSnapshotsTotal.WithLabelValues("no_offers").Inc()
			logger.Info("no flight offers", zap.String("origin", o.cfg.Query.Origin), zap.String("destination", o.cfg.Query.Destination))
			return nil, &Failure{Reason: ReasonNoOffers, Err: err}
		}
		observability.LogisticsSnapshotsTotal.WithLabelValues("selection_error").Inc()
		logger.Warn("best flight selection failed", zap.Error(err))
		return nil, &Failure{Reason: ReasonSelectionError, Err: err}
	}

	res := &Result{
		Offers:       offers,
		Best:         best,
		Degraded:     map[string]string{},
		SnapshotPath: o.cfg.SnapshotPath,
	}
	weather := o.arrivalWeather(ctx, best.ArrivalTime)
	res.Weather = weather.Value
	if weather.Degraded {
		res.Degraded[client.ProviderForecast] = weather.Reason
	}
	traffic := o.routeTraffic(ctx)
	res.Traffic = traffic.Value
	if traffic.Degraded {
		res.Degraded[client.ProviderRouting] = traffic.Reason
	}

	if o.cfg.SnapshotPath != "" {
		if err := store.OverwriteTable(o.cfg.SnapshotPath, snapshotTable(res)); err != nil {
			logger.Error("persist logistics snapshot failed", zap.String("path", o.cfg.SnapshotPath), zap.Error(err))
		} else {
			res.Persisted = true
		}
	}

	observability.LogisticsSnapshotsTotal.WithLabelValues("success").Inc()
	logger.Debug("logistics snapshot built",
		zap.Int("offers", len(offers)),
		zap.String("best_price", best.Price),
		zap.Int("degraded", len(res.Degraded)),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// Invalidate drops every memoized upstream result so the next snapshot refetches.
func (o *Orchestrator) Invalidate(ctx context.Context) error {
	return errors.Join(
		o.offers.Invalidate(ctx),
		o.weather.Invalidate(ctx),
		o.traffic.Invalidate(ctx),
	)
}

// arrivalWeather returns the forecast nearest to arrival. The memo holds one arrival;
// a different arrival replaces it.
func (o *Orchestrator) arrivalWeather(ctx context.Context, arrival string) models.Outcome[models.WeatherSnapshot] {
	load := func(ctx context.Context) (weatherEntry, error) {
		samples, err := o.clients.Forecast.Forecast(ctx, o.cfg.WeatherLocation)
		if err != nil {
			return weatherEntry{}, err
		}
		return weatherEntry{Arrival: arrival, Snapshot: weatherAt(samples, arrival)}, nil
	}

	entry, err := o.weather.GetOrLoad(ctx, load)
	if err == nil && entry.Arrival != arrival {
		_ = o.weather.Invalidate(ctx)
		entry, err = o.weather.GetOrLoad(ctx, load)
	}
	if err != nil {
		o.degrade(ctx, client.ProviderForecast, err)
		return models.Degrade(models.PlaceholderWeather(arrival), err)
	}
	if entry.Snapshot.Placeholder {
		return models.Outcome[models.WeatherSnapshot]{Value: entry.Snapshot, Degraded: true, Reason: "no forecast sample for arrival " + arrival}
	}
	return models.Ok(entry.Snapshot)
}

func (o *Orchestrator) routeTraffic(ctx context.Context) models.Outcome[[]models.RouteSection] {
	sections, err := o.traffic.GetOrLoad(ctx, func(ctx context.Context) ([]models.RouteSection, error) {
		return o.clients.Routing.Route(ctx, o.cfg.RouteOrigin, o.cfg.RouteDestination)
	})
	if err != nil {
		o.degrade(ctx, client.ProviderRouting, err)
		return models.Degrade([]models.RouteSection{}, err)
	}
	if sections == nil {
		sections = []models.RouteSection{}
	}
	return models.Ok(sections)
}

func (o *Orchestrator) degrade(ctx context.Context, provider string, err error) {
	category := client.CategorizeError(err)
	observability.RecordDegraded(provider, string(category))
	observability.LoggerFromContext(ctx, o.logger).Warn("upstream degraded to placeholder",
		zap.String("provider", provider),
		zap.String("category", string(category)),
		zap.Error(err))
}
