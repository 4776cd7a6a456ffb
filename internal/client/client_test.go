package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/traffic"
)

const testKey = "test-api-key-12345"

func forecastBody() map[string]interface{} {
	return map[string]interface{}{
		"list": []map[string]interface{}{
			{
				"dt":      1733040000,
				"main":    map[string]interface{}{"temp": 18.5, "temp_max": 19.0, "temp_min": 17.2, "humidity": 60},
				"weather": []map[string]interface{}{{"main": "Clear", "description": "clear sky"}},
				"wind":    map[string]interface{}{"speed": 3.1, "deg": 250},
				"clouds":  map[string]interface{}{"all": 5},
			},
		},
	}
}

func TestNewOpenWeatherClient_InvalidAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr error
	}{
		{"empty API key", "", ErrInvalidAPIKey},
		{"too short API key", "short", ErrInvalidAPIKey},
		{"valid API key", testKey, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenWeatherClient(tt.apiKey, "https://api.test.com", Options{Timeout: 2 * time.Second})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewOpenWeatherClient() error = %v, want %v", err, tt.wantErr)
				}
				if client != nil {
					t.Errorf("NewOpenWeatherClient() expected nil client on error")
				}
				return
			}
			if err != nil || client == nil {
				t.Fatalf("NewOpenWeatherClient() = %v, %v", client, err)
			}
		})
	}
}

func TestBaseClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		retryable bool
	}{
		{"401 unauthorized", http.StatusUnauthorized, ErrInvalidAPIKey, false},
		{"403 forbidden", http.StatusForbidden, ErrInvalidAPIKey, false},
		{"404 not found", http.StatusNotFound, ErrNotFound, false},
		{"429 rate limited", http.StatusTooManyRequests, ErrRateLimited, true},
		{"500 server error", http.StatusInternalServerError, ErrUpstreamFailure, true},
		{"502 bad gateway", http.StatusBadGateway, ErrUpstreamFailure, true},
		{"400 bad request", http.StatusBadRequest, ErrUpstreamFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, err := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: 2 * time.Second})
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() error = %v", err)
			}
			_, err = client.Forecast(context.Background(), "Los Angeles,US")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Forecast() error = %v, want %v", err, tt.wantErr)
			}
			if got := isRetryable(context.Background(), err); got != tt.retryable {
				t.Errorf("isRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

// TestBaseClient_SingleAttemptByDefault verifies no retries happen unless configured.
func TestBaseClient_SingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second})
	if _, err := client.Forecast(context.Background(), "x"); err == nil {
		t.Fatal("Forecast() error = nil")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

// TestBaseClient_FixedDelayAttempts verifies configured attempts retry retryable
// failures after a fixed pause and succeed once the upstream recovers.
func TestBaseClient_FixedDelayAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(forecastBody())
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second, Attempts: 3, RetryDelay: 5 * time.Millisecond})
	got, err := client.Forecast(context.Background(), "x")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got) != 1 || calls.Load() != 3 {
		t.Errorf("got %d samples after %d calls", len(got), calls.Load())
	}
}

func TestBaseClient_ExhaustedAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second, Attempts: 2, RetryDelay: time.Millisecond})
	_, err := client.Forecast(context.Background(), "x")
	if !errors.Is(err, ErrRateLimited) || !strings.Contains(err.Error(), "exhausted 2 attempts") {
		t.Errorf("Forecast() error = %v", err)
	}
}

func TestBaseClient_NoRetryOnNonRetryableError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second, Attempts: 3, RetryDelay: time.Millisecond})
	_, _ = client.Forecast(context.Background(), "x")
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestBaseClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: 2 * time.Second, Attempts: 3, RetryDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Forecast(ctx, "x")
	if err == nil {
		t.Fatal("Forecast() error = nil, want timeout")
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancellation took %v; retries should stop once ctx is done", time.Since(start))
	}
}

func TestBaseClient_CorrelationID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		_ = json.NewEncoder(w).Encode(forecastBody())
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second})
	ctx := observability.WithCorrelationID(context.Background(), "corr-42")
	if _, err := client.Forecast(ctx, "x"); err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if got != "corr-42" {
		t.Errorf("X-Correlation-ID = %q, want corr-42", got)
	}
}

func TestBaseClient_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second})
	_, err := client.Forecast(context.Background(), "x")
	if CategorizeError(err) != ErrorCategoryParsing {
		t.Errorf("CategorizeError(%v) = %v, want parsing", err, CategorizeError(err))
	}
}

// TestBaseClient_CircuitOpens verifies repeated upstream failures open the breaker
// and later calls fail fast without reaching the server.
func TestBaseClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	breaker := NewBreaker(ProviderForecast, 2, 1, time.Hour)
	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second, Breaker: breaker})

	for i := 0; i < 2; i++ {
		_, _ = client.Forecast(context.Background(), "x")
	}
	_, err := client.Forecast(context.Background(), "x")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Forecast() error = %v, want ErrCircuitOpen", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server calls = %d, want 2", n)
	}
}

// TestBaseClient_NotFoundDoesNotTrip verifies 404s leave the breaker closed.
func TestBaseClient_NotFoundDoesNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	breaker := NewBreaker(ProviderForecast, 1, 1, time.Hour)
	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second, Breaker: breaker})
	for i := 0; i < 3; i++ {
		if _, err := client.Forecast(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d error = %v, want ErrNotFound", i, err)
		}
	}
}

func TestBaseClient_RecordsUpstreamOutcome(t *testing.T) {
	traffic.Reset()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewOpenWeatherClient(testKey, server.URL, Options{Timeout: time.Second})
	_, _ = client.Forecast(context.Background(), "x")

	rates := traffic.UpstreamRates(time.Minute)
	if len(rates) != 1 || rates[0].Provider != ProviderForecast || rates[0].Failures != 1 {
		t.Errorf("UpstreamRates() = %+v", rates)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{200: "success", 204: "success", 429: "rate_limited", 404: "client_error", 503: "server_error", 302: "error"}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
