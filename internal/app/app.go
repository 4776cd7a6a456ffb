// Package app assembles the services from configuration. Both binaries build on it.
package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/cache"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/circuitbreaker"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/client"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/config"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/enrich"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/logistics"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/restaurants"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/wines"
)

// App holds the wired services and the resources that need closing.
type App struct {
	Restaurants *restaurants.Service
	Logistics   *logistics.Orchestrator
	Wines       *wines.Catalog
	Breakers    []*circuitbreaker.CircuitBreaker
	// Forecast is exposed for the health endpoint's API key check.
	Forecast *client.OpenWeatherClient

	// Memcached is set when the memo slots live in memcached.
	Memcached *cache.MemcachedBackend
}

// Build creates the upstream clients, the memo backend and the services.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}
	breaker := func(provider string) *circuitbreaker.CircuitBreaker {
		b := client.NewBreaker(provider, cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerTimeout)
		a.Breakers = append(a.Breakers, b)
		return b
	}
	opts := func(provider string) client.Options {
		return client.Options{
			Timeout:    cfg.UpstreamTimeout,
			Attempts:   cfg.RetryAttempts,
			RetryDelay: cfg.RetryDelay,
			Breaker:    breaker(provider),
		}
	}

	places, err := client.NewGooglePlacesClient(cfg.Secrets.GoogleAPIKey, cfg.PlacesURL, opts(client.ProviderPlaces))
	if err != nil {
		return nil, fmt.Errorf("places client: %w", err)
	}
	flights, err := client.NewAmadeusClient(cfg.Secrets.AmadeusClientID, cfg.Secrets.AmadeusClientSecret, cfg.AmadeusURL, opts(client.ProviderFlights))
	if err != nil {
		return nil, fmt.Errorf("flights client: %w", err)
	}
	forecast, err := client.NewOpenWeatherClient(cfg.Secrets.OpenWeatherAPIKey, cfg.OpenWeatherURL, opts(client.ProviderForecast))
	if err != nil {
		return nil, fmt.Errorf("forecast client: %w", err)
	}
	a.Forecast = forecast
	routing, err := client.NewTomTomClient(cfg.Secrets.TomTomAPIKey, cfg.TomTomURL, opts(client.ProviderRouting))
	if err != nil {
		return nil, fmt.Errorf("routing client: %w", err)
	}

	var backend cache.Backend
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedBackend(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached backend: %w", err)
		}
		a.Memcached = mc
		backend = mc
		logger.Info("memo backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		backend = cache.NewInMemoryBackend()
		logger.Info("memo backend: in_memory")
	}

	a.Restaurants = restaurants.NewService(places, enrich.NewWineEnricher(), cfg.RestaurantPath(),
		restaurants.WithLimit(cfg.ResultLimit),
		restaurants.WithDefaultWindow(cfg.FreshnessWindow),
		restaurants.WithLogger(logger))

	a.Logistics = logistics.NewOrchestrator(
		logistics.Clients{Flights: flights, Forecast: forecast, Routing: routing},
		backend,
		logistics.Config{
			Query:            cfg.FlightQuery(),
			WeatherLocation:  cfg.WeatherLocation,
			RouteOrigin:      cfg.RouteOrigin,
			RouteDestination: cfg.RouteDestination,
			GateInterval:     cfg.RateGateInterval,
			MemoTTL:          cfg.MemoTTL,
			SnapshotPath:     cfg.SnapshotPath(),
		},
		logger)

	a.Wines, err = wines.Load(cfg.WineCatalogPath())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Info("wine catalog loaded", zap.String("path", cfg.WineCatalogPath()), zap.Int("wines", a.Wines.Len()))
	return a, nil
}

// Close releases the memo backend connection, if any.
func (a *App) Close() error {
	var errs []error
	if a.Memcached != nil {
		if err := a.Memcached.Close(); err != nil {
			errs = append(errs, fmt.Errorf("memcached close: %w", err))
		}
	}
	return errors.Join(errs...)
}
