package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/app"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/cache"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/config"
	httphandler "github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/http"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/lifecycle"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	services, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("build services", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		Window:      cfg.HealthWindow,
		ErrorPct:    cfg.HealthErrorPct,
		APIKeyCheck: services.Forecast.ValidateAPIKey,
	}
	for _, b := range services.Breakers {
		healthConfig.Breakers = append(healthConfig.Breakers, b)
	}
	if services.Memcached != nil {
		healthConfig.CachePing = services.Memcached.Ping
	}
	handler := httphandler.NewHandler(httphandler.Services{
		Restaurants:     services.Restaurants,
		Logistics:       services.Logistics,
		Wines:           services.Wines,
		FreshnessWindow: cfg.FreshnessWindow,
	}, healthConfig, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	observability.RegisterRateLimitGauges(cfg.HealthWindow)

	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:          limiter,
		RequestTimeout:   cfg.RequestTimeout,
		LogisticsTimeout: cfg.LogisticsTimeout,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.LogisticsTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Duration("rate_gate_interval", cfg.RateGateInterval),
			zap.Duration("freshness_window", cfg.FreshnessWindow))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	if len(cfg.TrackedCities) > 0 {
		warmer := cache.NewCacheWarmer(services.Restaurants, logger)
		g.Go(func() error {
			if err := warmer.WarmPeriodic(gctx, cfg.TrackedCities, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("cache warming stopped", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("graceful shutdown triggered")
		lifecycle.BeginDrain()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
		logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
		if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
			logger.Warn("in-flight requests not completed",
				zap.Error(err),
				zap.Int64("remaining", httphandler.InFlightCount()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := services.Close(); err != nil {
		logger.Error("close services", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
