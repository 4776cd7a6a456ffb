//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/cache"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/client"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/enrich"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/restaurants"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	GoogleAPIKey  string
	PlacesURL     string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if GOOGLE_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		t.Skip("GOOGLE_API_KEY not set, skipping integration test")
	}
	cfg := MemoConfig()
	cfg.GoogleAPIKey = apiKey
	cfg.PlacesURL = os.Getenv("PLACES_URL")
	if cfg.PlacesURL == "" {
		cfg.PlacesURL = client.DefaultPlacesURL
	}
	return cfg
}

// MemoConfig reads only the memo backend settings, for tests that need no API key.
func MemoConfig() IntegrationTestConfig {
	addr := os.Getenv("MEMCACHED_ADDRS")
	if addr == "" {
		addr = "localhost:11211"
	}
	return IntegrationTestConfig{
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: addr,
	}
}

// SetupMemoBackend returns the memo backend named by cfg, falling back to in-memory
// when memcached is unreachable. The cleanup func closes it.
func SetupMemoBackend(t *testing.T, cfg IntegrationTestConfig) (cache.Backend, func()) {
	t.Helper()
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedBackend(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			if err = mc.Ping(); err == nil {
				t.Logf("Using Memcached at %s", cfg.MemcachedAddr)
				return mc, func() { _ = mc.Close() }
			}
			_ = mc.Close()
		}
		t.Logf("Memcached not available (%v), using in-memory backend", err)
	}
	return cache.NewInMemoryBackend(), func() {}
}

// SetupRestaurantService returns a restaurant service over the live places API,
// persisting to a file in a per-test temp dir.
func SetupRestaurantService(t *testing.T, cfg IntegrationTestConfig, limit int) *restaurants.Service {
	t.Helper()
	places, err := client.NewGooglePlacesClient(cfg.GoogleAPIKey, cfg.PlacesURL, client.Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewGooglePlacesClient() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "restaurant_and_wine_data.csv")
	return restaurants.NewService(places, enrich.NewWineEnricher(), path,
		restaurants.WithLimit(limit),
		restaurants.WithLogger(zap.NewNop()))
}
