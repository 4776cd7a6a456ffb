package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/circuitbreaker"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/client"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/lifecycle"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/logistics"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/restaurants"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/traffic"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/wines"
)

type fakeRestaurants struct {
	result    restaurants.Result
	err       error
	gotCity   string
	gotWindow time.Duration
	calls     int
}

func (f *fakeRestaurants) GetOrFetch(ctx context.Context, city string, window time.Duration) (restaurants.Result, error) {
	f.calls++
	f.gotCity = city
	f.gotWindow = window
	if f.err != nil {
		return restaurants.Result{}, f.err
	}
	res := f.result
	res.City = city
	return res, nil
}

type fakeLogistics struct {
	result      *logistics.Result
	err         error
	block       bool // wait for ctx instead of answering
	invalidated int
}

func (f *fakeLogistics) Snapshot(ctx context.Context) (*logistics.Result, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeLogistics) Invalidate(ctx context.Context) error {
	f.invalidated++
	return nil
}

type fakeCatalog struct {
	wines []wines.Wine
	got   wines.Filter
}

func (f *fakeCatalog) Columns() []string {
	return []string{wines.ColWineType, wines.ColCompanyName, wines.ColWinePrice}
}

func (f *fakeCatalog) Filter(filter wines.Filter) []wines.Wine {
	f.got = filter
	return f.wines
}

type fakeBreaker struct {
	name  string
	state circuitbreaker.State
}

func (b fakeBreaker) Component() string            { return b.name }
func (b fakeBreaker) State() circuitbreaker.State { return b.state }

func newTestHandler(svc Services, health *HealthConfig) *Handler {
	if svc.Restaurants == nil {
		svc.Restaurants = &fakeRestaurants{}
	}
	if svc.Logistics == nil {
		svc.Logistics = &fakeLogistics{}
	}
	if svc.Wines == nil {
		svc.Wines = &fakeCatalog{}
	}
	return NewHandler(svc, health, zap.NewNop())
}

func serve(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(observability.WithCorrelationID(req.Context(), "test-corr"))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Error map[string]string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func sampleRecord(city string) models.RestaurantRecord {
	return models.RestaurantRecord{
		City:      city,
		Timestamp: time.Date(2024, 11, 30, 9, 0, 0, 0, time.Local),
		Name:      "Quince",
		Address:   "470 Pacific Ave",
		Latitude:  37.79,
		Longitude: -122.4,
		Wine:      models.WineAttributes{WineType: "Red", Supplier: "Supplier A", QualityTier: "Premium", QuantityAvailable: 42},
	}
}

func TestHandler_GetRestaurants_Success(t *testing.T) {
	fake := &fakeRestaurants{result: restaurants.Result{
		Source:    restaurants.SourceHit,
		Records:   []models.RestaurantRecord{sampleRecord("Boston")},
		Persisted: true,
	}}
	handler := newTestHandler(Services{Restaurants: fake, FreshnessWindow: 6 * time.Hour}, nil)

	w := serve(handler.GetRestaurants, "/restaurants?city=%20Boston%20")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if fake.gotCity != "Boston" || fake.gotWindow != 6*time.Hour {
		t.Errorf("GetOrFetch(%q, %v), want (Boston, 6h)", fake.gotCity, fake.gotWindow)
	}
	var body restaurantsResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.City != "Boston" || body.Source != restaurants.SourceHit || body.Count != 1 || body.Degraded {
		t.Errorf("body = %+v", body)
	}
	if body.Restaurants[0].Wine.Supplier != "Supplier A" {
		t.Errorf("wine = %+v", body.Restaurants[0].Wine)
	}
}

func TestHandler_GetRestaurants_DefaultCity(t *testing.T) {
	fake := &fakeRestaurants{}
	handler := newTestHandler(Services{Restaurants: fake}, nil)

	w := serve(handler.GetRestaurants, "/restaurants")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if fake.gotCity != DefaultCity {
		t.Errorf("city = %q, want %q", fake.gotCity, DefaultCity)
	}
	if fake.gotWindow != restaurants.DefaultWindow {
		t.Errorf("window = %v, want %v", fake.gotWindow, restaurants.DefaultWindow)
	}
	var body map[string]interface{}
	_ = json.NewDecoder(w.Body).Decode(&body)
	if list, ok := body["restaurants"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("restaurants = %v, want empty list", body["restaurants"])
	}
}

func TestHandler_GetRestaurants_InvalidCity(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"empty", "/restaurants?city="},
		{"whitespace", "/restaurants?city=%20%20"},
		{"invalid chars", "/restaurants?city=Paris%3B%20DROP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRestaurants{}
			handler := newTestHandler(Services{Restaurants: fake}, nil)

			w := serve(handler.GetRestaurants, tt.target)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if e := decodeError(t, w); e["code"] != "INVALID_CITY" || e["requestId"] != "test-corr" {
				t.Errorf("error = %v", e)
			}
			if fake.calls != 0 {
				t.Errorf("service called %d times, want 0", fake.calls)
			}
		})
	}
}

func TestHandler_GetRestaurants_Degraded(t *testing.T) {
	fake := &fakeRestaurants{result: restaurants.Result{
		Source:   restaurants.SourceMiss,
		Degraded: true,
		Reason:   "upstream unavailable",
	}}
	handler := newTestHandler(Services{Restaurants: fake}, nil)

	w := serve(handler.GetRestaurants, "/restaurants?city=Lima")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body restaurantsResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	if !body.Degraded || body.Reason != "upstream unavailable" || body.Count != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandler_GetRestaurants_ServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, "CANCELED"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(Services{Restaurants: &fakeRestaurants{err: tt.err}}, nil)
			w := serve(handler.GetRestaurants, "/restaurants?city=Oslo")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if e := decodeError(t, w); e["code"] != tt.wantErr {
				t.Errorf("code = %q, want %q", e["code"], tt.wantErr)
			}
		})
	}
}

func logisticsResult() *logistics.Result {
	return &logistics.Result{
		Offers: []models.FlightOffer{{ID: "1", Price: models.Price{Total: "9500.00", Currency: "ZAR"}}},
		Best: models.BestFlight{
			Price:       "9500.00",
			Amount:      9500,
			Currency:    "ZAR",
			ArrivalTime: "2024-12-02T10:00:00",
			Airline:     "QR",
			Origin:      "CPT",
			Destination: "LAX",
		},
		Weather:  models.PlaceholderWeather("2024-12-02T10:00:00"),
		Degraded: map[string]string{client.ProviderForecast: "upstream failure"},
	}
}

func TestHandler_GetLogistics_Success(t *testing.T) {
	fake := &fakeLogistics{result: logisticsResult()}
	handler := newTestHandler(Services{Logistics: fake}, nil)

	w := serve(handler.GetLogistics, "/logistics")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body logisticsResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.BestFlight.Airline != "QR" || len(body.Offers) != 1 {
		t.Errorf("body = %+v", body)
	}
	if body.ArrivalTimeFormatted != "December 02, 2024, 10:00 AM" {
		t.Errorf("arrivalTimeFormatted = %q", body.ArrivalTimeFormatted)
	}
	if !body.ArrivalWeather.Placeholder || body.Degraded[client.ProviderForecast] == "" {
		t.Errorf("weather = %+v, degraded = %v", body.ArrivalWeather, body.Degraded)
	}
	if body.Traffic == nil {
		t.Error("traffic should be an empty list, not null")
	}
	if fake.invalidated != 0 {
		t.Errorf("invalidated = %d, want 0", fake.invalidated)
	}
}

func TestHandler_GetLogistics_Refresh(t *testing.T) {
	fake := &fakeLogistics{result: logisticsResult()}
	handler := newTestHandler(Services{Logistics: fake}, nil)

	w := serve(handler.GetLogistics, "/logistics?refresh=true")

	if w.Code != http.StatusOK || fake.invalidated != 1 {
		t.Errorf("status = %d, invalidated = %d", w.Code, fake.invalidated)
	}
}

func TestHandler_GetLogistics_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
		wantMsg  string
	}{
		{"fetch error", &logistics.Failure{Reason: logistics.ReasonFetchError, Err: client.ErrUpstreamFailure},
			http.StatusBadGateway, "FETCH_ERROR", "Failed to fetch flight data."},
		{"no offers", &logistics.Failure{Reason: logistics.ReasonNoOffers, Err: logistics.ErrNoOffers},
			http.StatusNotFound, "NO_OFFERS", "No flight offers available."},
		{"selection error", &logistics.Failure{Reason: logistics.ReasonSelectionError, Err: logistics.ErrSelection},
			http.StatusUnprocessableEntity, "SELECTION_ERROR", "No best flight found."},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(Services{Logistics: &fakeLogistics{err: tt.err}}, nil)
			w := serve(handler.GetLogistics, "/logistics")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			e := decodeError(t, w)
			if e["code"] != tt.wantErr || e["message"] != tt.wantMsg {
				t.Errorf("error = %v", e)
			}
		})
	}
}

func TestHandler_GetWines_Filters(t *testing.T) {
	price := 120.0
	catalog := &fakeCatalog{wines: []wines.Wine{{
		Fields: map[string]string{wines.ColWineType: "Merlot", wines.ColCompanyName: "Supplier A", wines.ColWinePrice: "120"},
		Price:  &price,
	}}}
	handler := newTestHandler(Services{Wines: catalog}, nil)

	w := serve(handler.GetWines, "/wines?wine_type=merlot&supplier=%20a%20&min_price=100&max_score=95.5")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := catalog.got
	if got.WineType != "merlot" || got.Supplier != "a" {
		t.Errorf("text filters = %q, %q", got.WineType, got.Supplier)
	}
	if got.MinPrice == nil || *got.MinPrice != 100 || got.MaxPrice != nil {
		t.Errorf("price bounds = %v, %v", got.MinPrice, got.MaxPrice)
	}
	if got.MaxScore == nil || *got.MaxScore != 95.5 || got.MinScore != nil {
		t.Errorf("score bounds = %v, %v", got.MinScore, got.MaxScore)
	}

	var body winesResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Count != 1 || body.Wines[0][wines.ColWineType] != "Merlot" || len(body.Columns) != 3 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandler_GetWines_InvalidFilter(t *testing.T) {
	handler := newTestHandler(Services{}, nil)

	w := serve(handler.GetWines, "/wines?min_price=cheap")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if e := decodeError(t, w); e["code"] != "INVALID_FILTER" || e["message"] != "min_price must be a number" {
		t.Errorf("error = %v", e)
	}
}

func TestHandler_GetWines_Empty(t *testing.T) {
	handler := newTestHandler(Services{}, nil)

	w := serve(handler.GetWines, "/wines")

	var body map[string]interface{}
	_ = json.NewDecoder(w.Body).Decode(&body)
	if list, ok := body["wines"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("wines = %v, want empty list", body["wines"])
	}
}

func healthBody(t *testing.T, w *httptest.ResponseRecorder) (string, map[string]string) {
	t.Helper()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return body.Status, body.Checks
}

func resetHealthState(t *testing.T) {
	t.Helper()
	lifecycle.Reset()
	traffic.Reset()
	t.Cleanup(func() {
		lifecycle.Reset()
		traffic.Reset()
	})
}

func TestHandler_GetHealth_Healthy(t *testing.T) {
	resetHealthState(t)
	handler := newTestHandler(Services{}, &HealthConfig{
		Window:    time.Minute,
		ErrorPct:  50,
		Breakers:  []Breaker{fakeBreaker{client.ProviderFlights, circuitbreaker.StateClosed}},
		CachePing: func() error { return nil },
		Version:   "1.2.3",
	})

	w := serve(handler.GetHealth, "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	status, checks := healthBody(t, w)
	if status != "healthy" || checks[client.ProviderFlights] != "healthy" || checks["cache"] != "healthy" {
		t.Errorf("status = %q, checks = %v", status, checks)
	}
}

func TestHandler_GetHealth_NilConfig(t *testing.T) {
	resetHealthState(t)
	handler := newTestHandler(Services{}, nil)

	w := serve(handler.GetHealth, "/health")

	if status, _ := healthBody(t, w); w.Code != http.StatusOK || status != "healthy" {
		t.Errorf("status = %d %q", w.Code, status)
	}
}

func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	resetHealthState(t)
	lifecycle.BeginDrain()
	handler := newTestHandler(Services{}, &HealthConfig{
		Breakers: []Breaker{fakeBreaker{client.ProviderFlights, circuitbreaker.StateOpen}},
	})

	w := serve(handler.GetHealth, "/health")

	if status, _ := healthBody(t, w); w.Code != http.StatusServiceUnavailable || status != "shutting-down" {
		t.Errorf("status = %d %q, want 503 shutting-down", w.Code, status)
	}
}

func TestHandler_GetHealth_CircuitOpen(t *testing.T) {
	resetHealthState(t)
	handler := newTestHandler(Services{}, &HealthConfig{
		Breakers: []Breaker{
			fakeBreaker{client.ProviderForecast, circuitbreaker.StateHalfOpen},
			fakeBreaker{client.ProviderPlaces, circuitbreaker.StateOpen},
		},
	})

	w := serve(handler.GetHealth, "/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	status, checks := healthBody(t, w)
	if status != "degraded" || checks[client.ProviderPlaces] != "circuit_open" || checks[client.ProviderForecast] != "recovering" {
		t.Errorf("status = %q, checks = %v", status, checks)
	}
}

func TestHandler_GetHealth_UpstreamErrorRate(t *testing.T) {
	resetHealthState(t)
	traffic.RecordUpstream(client.ProviderRouting, client.ErrUpstreamFailure)
	traffic.RecordUpstream(client.ProviderRouting, client.ErrUpstreamFailure)
	traffic.RecordUpstream(client.ProviderRouting, nil)
	traffic.RecordUpstream(client.ProviderFlights, nil)
	handler := newTestHandler(Services{}, &HealthConfig{Window: time.Minute, ErrorPct: 50})

	w := serve(handler.GetHealth, "/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	status, checks := healthBody(t, w)
	if status != "degraded" || checks[client.ProviderRouting] != "unhealthy" {
		t.Errorf("status = %q, checks = %v", status, checks)
	}
	if _, ok := checks[client.ProviderFlights]; ok {
		t.Errorf("healthy provider should not be flagged: %v", checks)
	}
}

func TestHandler_GetHealth_BelowErrorThreshold(t *testing.T) {
	resetHealthState(t)
	traffic.RecordUpstream(client.ProviderRouting, client.ErrUpstreamFailure)
	for i := 0; i < 3; i++ {
		traffic.RecordUpstream(client.ProviderRouting, nil)
		traffic.RecordSuccess()
	}
	traffic.RecordError()
	handler := newTestHandler(Services{}, &HealthConfig{Window: time.Minute, ErrorPct: 50})

	w := serve(handler.GetHealth, "/health")

	if status, _ := healthBody(t, w); w.Code != http.StatusOK || status != "healthy" {
		t.Errorf("status = %d %q, want 200 healthy", w.Code, status)
	}
}

func TestHandler_GetHealth_RequestErrorRate(t *testing.T) {
	resetHealthState(t)
	traffic.RecordError()
	traffic.RecordError()
	traffic.RecordSuccess()
	handler := newTestHandler(Services{}, &HealthConfig{Window: time.Minute, ErrorPct: 50})

	w := serve(handler.GetHealth, "/health")

	if status, _ := healthBody(t, w); w.Code != http.StatusServiceUnavailable || status != "degraded" {
		t.Errorf("status = %d %q, want 503 degraded", w.Code, status)
	}
}

func TestHandler_GetHealth_CacheUnreachableStaysHealthy(t *testing.T) {
	resetHealthState(t)
	handler := newTestHandler(Services{}, &HealthConfig{
		CachePing: func() error { return errors.New("dial tcp: refused") },
	})

	w := serve(handler.GetHealth, "/health")

	status, checks := healthBody(t, w)
	if w.Code != http.StatusOK || status != "healthy" || checks["cache"] != "unhealthy" {
		t.Errorf("status = %d %q, checks = %v", w.Code, status, checks)
	}
}

func TestHandler_GetHealth_APIKeyCheck(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
		wantCheck  string
	}{
		{"valid", nil, http.StatusOK, "healthy", "valid"},
		{"rejected", fmt.Errorf("%w: API key is invalid or not activated", client.ErrInvalidAPIKey), http.StatusServiceUnavailable, "degraded", "invalid"},
		{"unreachable", errors.New("validation request failed: dial tcp: refused"), http.StatusOK, "healthy", "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealthState(t)
			handler := newTestHandler(Services{}, &HealthConfig{
				APIKeyCheck: func(ctx context.Context) error { return tt.err },
			})

			w := serve(handler.GetHealth, "/health")

			status, checks := healthBody(t, w)
			if w.Code != tt.wantCode || status != tt.wantStatus || checks["forecast_api_key"] != tt.wantCheck {
				t.Errorf("status = %d %q, checks = %v", w.Code, status, checks)
			}
		})
	}
}

func TestHandler_GetHealth_ForecastKeyRejectedUpstream(t *testing.T) {
	resetHealthState(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()
	forecast, err := client.NewOpenWeatherClient("0123456789abcdef", upstream.URL, client.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	handler := newTestHandler(Services{}, &HealthConfig{APIKeyCheck: forecast.ValidateAPIKey})

	w := serve(handler.GetHealth, "/health")

	status, checks := healthBody(t, w)
	if w.Code != http.StatusServiceUnavailable || status != "degraded" || checks["forecast_api_key"] != "invalid" {
		t.Errorf("status = %d %q, checks = %v", w.Code, status, checks)
	}
}

func TestHandler_GetHealth_OpenCircuitWinsOverKeyCheck(t *testing.T) {
	resetHealthState(t)
	handler := newTestHandler(Services{}, &HealthConfig{
		Breakers:    []Breaker{fakeBreaker{client.ProviderForecast, circuitbreaker.StateOpen}},
		APIKeyCheck: func(ctx context.Context) error { return client.ErrInvalidAPIKey },
	})

	w := serve(handler.GetHealth, "/health")

	status, checks := healthBody(t, w)
	if status != "degraded" || checks[client.ProviderForecast] != "circuit_open" || checks["forecast_api_key"] != "invalid" {
		t.Errorf("status = %q, checks = %v", status, checks)
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	resetHealthState(t)
	core, logs := observer.New(zapcore.InfoLevel)
	breaker := &fakeBreaker{name: client.ProviderFlights, state: circuitbreaker.StateClosed}
	handler := NewHandler(Services{
		Restaurants: &fakeRestaurants{},
		Logistics:   &fakeLogistics{},
		Wines:       &fakeCatalog{},
	}, &HealthConfig{Breakers: []Breaker{breaker}}, zap.New(core))

	serve(handler.GetHealth, "/health")
	breaker.state = circuitbreaker.StateOpen
	serve(handler.GetHealth, "/health")
	serve(handler.GetHealth, "/health")

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" || fields["reason"] != "circuit_open" {
		t.Errorf("fields = %v", fields)
	}
}
