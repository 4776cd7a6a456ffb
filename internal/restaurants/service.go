// Package restaurants serves restaurant listings for a city from a time-boxed,
// append-only local table, fetching from the places provider only when the
// latest capture for the city is older than the freshness window.
package restaurants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/client"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/enrich"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/store"
)

var (
	ErrInvalidKey    = errors.New("city must not be empty")
	ErrInvalidWindow = errors.New("freshness window must be positive")
)

// Source tells whether a result came from the local table or a fresh fetch.
type Source string

const (
	SourceHit  Source = "hit"
	SourceMiss Source = "miss"
)

const (
	DefaultLimit  = 50
	DefaultWindow = 12 * time.Hour

	// missing is written for place fields the provider left out.
	missing = "N/A"
)

// Result is the answer to one lookup. Degraded is set when the places provider
// failed and Records is empty because of it rather than because the city has none.
// Persisted is false on a miss whose batch could not be written.
type Result struct {
	City      string
	Source    Source
	Records   []models.RestaurantRecord
	Degraded  bool
	Reason    string
	Persisted bool
}

// Service implements the restaurant lookup.
type Service struct {
	places   client.PlacesClient
	enricher enrich.Enricher
	path     string
	limit    int
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
	misses   *missTracker
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLimit caps the number of places kept per fetch.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithDefaultWindow sets the window Refresh uses.
func WithDefaultWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewService returns a Service persisting to the CSV file at path.
func NewService(places client.PlacesClient, enricher enrich.Enricher, path string, opts ...Option) *Service {
	s := &Service{
		places:   places,
		enricher: enricher,
		path:     path,
		limit:    DefaultLimit,
		window:   DefaultWindow,
		now:      time.Now,
		logger:   zap.NewNop(),
		misses:   newMissTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file.
func (s *Service) Path() string { return s.path }

// GetOrFetch returns the records for city. If the newest stored capture for the city
// is within window it returns every stored row for the city without calling upstream.
// Otherwise it fetches, enriches, appends and returns the new batch.
//
// Upstream failures never surface as errors: the result is empty and Degraded.
// The returned error is non-nil only for invalid input or a cancelled ctx.
func (s *Service) GetOrFetch(ctx context.Context, city string, window time.Duration) (Result, error) {
	key := strings.TrimSpace(city)
	if key == "" {
		observability.RestaurantCacheLookupsTotal.WithLabelValues("invalid").Inc()
		return Result{}, ErrInvalidKey
	}
	if window <= 0 {
		observability.RestaurantCacheLookupsTotal.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	logger := observability.LoggerFromContext(ctx, s.logger)
	start := time.Now()

	now := s.now()
	if records, ok := s.lookup(key, now, window, logger); ok {
		observability.RestaurantCacheLookupsTotal.WithLabelValues(string(SourceHit)).Inc()
		logger.Debug("restaurant cache hit",
			zap.String("city", key),
			zap.Int("records", len(records)),
			zap.Duration("duration", time.Since(start)))
		return Result{City: key, Source: SourceHit, Records: records, Persisted: true}, nil
	}
	observability.RestaurantCacheLookupsTotal.WithLabelValues(string(SourceMiss)).Inc()

	if n := s.misses.begin(key); n > 1 {
		observability.RestaurantCacheConcurrentMissesTotal.Inc()
		logger.Info("concurrent miss for city", zap.String("city", key), zap.Int("in_flight", n))
	}
	defer s.misses.end(key)

	logger.Debug("restaurant cache miss, fetching upstream", zap.String("city", key))
	records, err := s.fetch(ctx, key, now, logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		category := client.CategorizeError(err)
		observability.RecordDegraded(client.ProviderPlaces, string(category))
		logger.Warn("place search failed, returning empty result",
			zap.String("city", key),
			zap.String("category", string(category)),
			zap.Error(err))
		return Result{City: key, Source: SourceMiss, Records: []models.RestaurantRecord{}, Degraded: true, Reason: err.Error()}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	res := Result{City: key, Source: SourceMiss, Records: records, Persisted: true}
	if len(records) == 0 {
		return res, nil
	}
	if err := store.AppendTable(s.path, toTable(records)); err != nil {
		res.Persisted = false
		logger.Error("persist restaurant records failed",
			zap.String("city", key),
			zap.String("path", s.path),
			zap.Error(err))
	}
	logger.Debug("restaurants fetched",
		zap.String("city", key),
		zap.Int("records", len(records)),
		zap.Bool("persisted", res.Persisted),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// Refresh brings city up to date using the default window. Used by the cache warmer;
// a degraded fetch is reported as an error so the warmer counts it.
func (s *Service) Refresh(ctx context.Context, city string) error {
	res, err := s.GetOrFetch(ctx, city, s.window)
	if err != nil {
		return err
	}
	if res.Degraded {
		return fmt.Errorf("refresh %s: %s", city, res.Reason)
	}
	return nil
}

// lookup reports the stored records for key and whether they are fresh.
// An unreadable table, a table without a Timestamp column, or a city whose
// timestamps are all malformed counts as stale.
func (s *Service) lookup(key string, now time.Time, window time.Duration, logger *zap.Logger) ([]models.RestaurantRecord, bool) {
	table, err := store.ReadTable(s.path)
	if err != nil {
		logger.Warn("restaurant table unreadable, treating as miss", zap.String("path", s.path), zap.Error(err))
		return nil, false
	}
	if table.Skipped > 0 {
		logger.Warn("restaurant table has malformed rows, skipping them",
			zap.String("path", s.path), zap.Int("skipped", table.Skipped))
	}
	if !table.HasColumn(ColTimestamp) || !table.HasColumn(ColCity) {
		return nil, false
	}

	var (
		records []models.RestaurantRecord
		latest  time.Time
		anyTS   bool
	)
	for _, row := range table.Rows {
		if row[ColCity] != key {
			continue
		}
		if ts, ok := parseTimestamp(row[ColTimestamp]); ok {
			if !anyTS || ts.After(latest) {
				latest = ts
			}
			anyTS = true
		}
		records = append(records, fromRow(row))
	}
	if len(records) == 0 || !anyTS {
		return nil, false
	}
	return records, now.Sub(latest) <= window
}

// fetch searches places for key and builds one record per place whose details load.
// Only the search error is returned; a failed detail lookup drops that place.
func (s *Service) fetch(ctx context.Context, key string, now time.Time, logger *zap.Logger) ([]models.RestaurantRecord, error) {
	summaries, err := s.places.SearchPlaces(ctx, "restaurants in "+key, s.limit)
	if err != nil {
		return nil, err
	}
	if len(summaries) > s.limit {
		summaries = summaries[:s.limit]
	}

	records := make([]models.RestaurantRecord, 0, len(summaries))
	for _, p := range summaries {
		if ctx.Err() != nil {
			break
		}
		detail, err := s.places.GetPlaceDetails(ctx, p.PlaceID)
		if err != nil {
			category := client.CategorizeError(err)
			observability.RecordDegraded(client.ProviderPlaces, string(category))
			logger.Warn("place details failed, skipping",
				zap.String("city", key),
				zap.String("place_id", p.PlaceID),
				zap.String("category", string(category)),
				zap.Error(err))
			continue
		}
		records = append(records, s.buildRecord(key, now, detail))
	}
	return records, nil
}

func (s *Service) buildRecord(city string, now time.Time, d models.PlaceDetail) models.RestaurantRecord {
	hours := missing
	if len(d.OpeningHours) > 0 {
		hours = strings.Join(d.OpeningHours, "\n")
	}
	return models.RestaurantRecord{
		City:         city,
		Timestamp:    now,
		Name:         orMissing(d.Name),
		Address:      orMissing(d.Address),
		Latitude:     d.Location.Lat,
		Longitude:    d.Location.Lng,
		OpeningHours: hours,
		Wine:         s.enricher.Generate(),
	}
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}
