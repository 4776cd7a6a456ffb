// Package client holds the narrow upstream fetchers: place search, flight offers,
// weather forecast and road routing. Each returns parsed records or a wrapped
// sentinel error; deciding what to do with a failure is left to the caller.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/circuitbreaker"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/traffic"
)

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrNotFound        = errors.New("not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrCircuitOpen     = errors.New("circuit open")
)

// Provider names used as metric labels and breaker names.
const (
	ProviderPlaces   = "places"
	ProviderFlights  = "flights"
	ProviderForecast = "forecast"
	ProviderRouting  = "routing"
)

// Options configures the shared request path of every provider client.
type Options struct {
	Timeout time.Duration
	// Attempts is the total number of tries per call. Values below 1 mean a single try.
	Attempts int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	Breaker    *circuitbreaker.CircuitBreaker
	HTTPClient *http.Client
}

// statusChecker is implemented by response envelopes that report failure in the body
// of a 200 response.
type statusChecker interface {
	checkStatus() error
}

type baseClient struct {
	provider string
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	attempts int
	delay    time.Duration
	breaker  *circuitbreaker.CircuitBreaker
}

func newBaseClient(provider, baseURL string, opts Options) (*baseClient, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("%s: invalid base URL %q", provider, baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &baseClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		delay:    opts.RetryDelay,
		breaker:  opts.Breaker,
	}, nil
}

// getJSON issues GET baseURL+path?params and decodes the body into out.
// The outcome of the whole call (after all attempts) is recorded for health.
func (c *baseClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				traffic.RecordUpstream(c.provider, ctx.Err())
				return ctx.Err()
			case <-time.After(c.delay):
			}
		}
		lastErr = c.callThroughBreaker(ctx, path, params, out)
		if lastErr == nil || !isRetryable(ctx, lastErr) {
			break
		}
	}
	traffic.RecordUpstream(c.provider, lastErr)
	if lastErr != nil && c.attempts > 1 && isRetryable(ctx, lastErr) {
		return fmt.Errorf("exhausted %d attempts: %w", c.attempts, lastErr)
	}
	return lastErr
}

func (c *baseClient) callThroughBreaker(ctx context.Context, path string, params url.Values, out any) error {
	if c.breaker == nil {
		return c.call(ctx, path, params, out)
	}
	var callErr error
	err := c.breaker.Call(ctx, func() error {
		callErr = c.call(ctx, path, params, out)
		if tripsBreaker(callErr) {
			return callErr
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.UpstreamCallsTotal.WithLabelValues(c.provider, "circuit_open").Inc()
		return fmt.Errorf("%w: %s", ErrCircuitOpen, c.provider)
	}
	if err != nil {
		return err
	}
	return callErr
}

func (c *baseClient) call(ctx context.Context, path string, params url.Values, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, path, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.provider, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(c.provider, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(c.provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(c.provider, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if sc, ok := out.(statusChecker); ok {
		return sc.checkStatus()
	}
	return nil
}

func (c *baseClient) buildRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

// isRetryable reports whether another attempt could succeed. A canceled caller never retries.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout")
}

// tripsBreaker reports whether err says the provider itself is unhealthy.
func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) && CategorizeError(err) != ErrorCategoryParsing
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// NewBreaker returns a circuit breaker for provider that reports its state to metrics.
func NewBreaker(provider string, failureThreshold, successThreshold int, timeout time.Duration) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(provider).Set(float64(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
		Timeout:          timeout,
		Component:        provider,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(provider, from.String(), to.String()).Inc()
			observability.CircuitBreakerState.WithLabelValues(provider).Set(float64(to))
		},
	})
}
