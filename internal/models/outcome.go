package models

// Outcome tags a soft-failing fetch: either the value was obtained (Degraded false)
// or the upstream failed and Value holds the empty/placeholder fallback.
// It keeps "upstream failed" distinguishable from "upstream returned nothing".
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

// Ok wraps a successfully fetched value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Degrade wraps a fallback value together with the error that forced it.
func Degrade[T any](fallback T, err error) Outcome[T] {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	return Outcome[T]{Value: fallback, Degraded: true, Reason: reason}
}
