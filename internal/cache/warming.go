package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
)

// CityRefresher is implemented by the restaurant service to bring a city's records up to date.
// Used by CacheWarmer to avoid a circular dependency on the restaurants package.
type CityRefresher interface {
	Refresh(ctx context.Context, city string) error
}

// CacheWarmer pre-fetches restaurant records for a list of cities.
type CacheWarmer struct {
	refresher CityRefresher
	logger    *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given refresher and logger.
func NewCacheWarmer(refresher CityRefresher, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{refresher: refresher, logger: logger}
}

// Warm refreshes each city in order. Cities are visited one at a time because every
// miss spends quota on the places provider. Returns the joined per-city errors.
func (w *CacheWarmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	observability.CacheWarmingRunsTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("cities", len(cities)))
	}
	var errs []error
	for _, city := range cities {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := w.refresher.Refresh(ctx, city); err != nil {
			observability.CacheWarmingFailuresTotal.Inc()
			errs = append(errs, fmt.Errorf("warm %s: %w", city, err))
		}
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDuration.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.Int("cities", len(cities)),
			zap.Int("errors", len(errs)),
			zap.Float64("duration_seconds", duration))
	}
	return errors.Join(errs...)
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, cities []string, interval time.Duration) error {
	if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
