// Package traffic keeps short sliding windows of request and upstream outcomes.
// The HTTP layer feeds request outcomes; upstream clients feed per-provider outcomes.
// Health checks and load gauges read them back.
package traffic

import (
	"sort"
	"sync"
	"time"
)

// Kind classifies a recorded outcome.
type Kind int

const (
	Success Kind = iota
	Failure
	Denied
	numKinds
)

// retention bounds how far back any query can look.
const retention = 5 * time.Minute

var (
	requests = NewWindow(retention)

	upstreamMu sync.Mutex
	upstream   = map[string]*Window{}
)

// RecordSuccess records a request that was served.
func RecordSuccess() { requests.Record(Success) }

// RecordError records a request that failed (upstream error, timeout, etc.).
func RecordError() { requests.Record(Failure) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { requests.Record(Denied) }

// RequestCount returns the number of request outcomes (success + error + denied) within the window.
func RequestCount(window time.Duration) int {
	return requests.Count(Success, window) + requests.Count(Failure, window) + requests.Count(Denied, window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return requests.Count(Denied, window)
}

// ErrorRate returns (errorCount, totalCount) for requests within the window. Denials are excluded.
func ErrorRate(window time.Duration) (errors, total int) {
	return requests.ErrorRate(window)
}

// RecordUpstream records one upstream call for provider. A nil err counts as success.
func RecordUpstream(provider string, err error) {
	upstreamMu.Lock()
	w, ok := upstream[provider]
	if !ok {
		w = NewWindow(retention)
		upstream[provider] = w
	}
	upstreamMu.Unlock()
	if err != nil {
		w.Record(Failure)
		return
	}
	w.Record(Success)
}

// ProviderRate is the failure count and total calls for one provider.
type ProviderRate struct {
	Provider string
	Failures int
	Total    int
}

// UpstreamRates returns per-provider outcome counts within the window, sorted by provider.
// Providers with no calls in the window are omitted.
func UpstreamRates(window time.Duration) []ProviderRate {
	upstreamMu.Lock()
	names := make([]string, 0, len(upstream))
	windows := make(map[string]*Window, len(upstream))
	for name, w := range upstream {
		names = append(names, name)
		windows[name] = w
	}
	upstreamMu.Unlock()
	sort.Strings(names)

	var out []ProviderRate
	for _, name := range names {
		failures, total := windows[name].ErrorRate(window)
		if total == 0 {
			continue
		}
		out = append(out, ProviderRate{Provider: name, Failures: failures, Total: total})
	}
	return out
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	requests.Reset()
	upstreamMu.Lock()
	upstream = map[string]*Window{}
	upstreamMu.Unlock()
}

// Window holds timestamps of recent outcomes per Kind.
type Window struct {
	mu     sync.Mutex
	maxAge time.Duration
	times  [numKinds][]time.Time
	now    func() time.Time
}

// NewWindow returns a Window that forgets outcomes older than maxAge.
func NewWindow(maxAge time.Duration) *Window {
	return &Window{maxAge: maxAge, now: time.Now}
}

// Record records one outcome of kind k.
func (w *Window) Record(k Kind) {
	w.RecordN(k, 1)
}

// RecordN records n outcomes of kind k at the same instant.
func (w *Window) RecordN(k Kind, n int) {
	if k < 0 || k >= numKinds || n <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	for i := 0; i < n; i++ {
		w.times[k] = append(w.times[k], now)
	}
	w.pruneLocked(now)
}

// Count returns the number of outcomes of kind k within the window.
func (w *Window) Count(k Kind, window time.Duration) int {
	if k < 0 || k >= numKinds {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return countSince(w.times[k], w.now().Add(-window))
}

// ErrorRate returns (failures, successes + failures) within the window.
func (w *Window) ErrorRate(window time.Duration) (failures, total int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-window)
	failures = countSince(w.times[Failure], cutoff)
	return failures, failures + countSince(w.times[Success], cutoff)
}

// Reset forgets every outcome.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.times {
		w.times[i] = nil
	}
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mu held.
func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	for k := range w.times {
		times := w.times[k]
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			w.times[k] = append(times[:0], times[i:]...)
		}
	}
}
