package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
)

// Slot memoizes a single value of type T in a Backend.
// It replaces an implicit process-wide memo with an owned object: the owner picks
// the TTL (0 = until Invalidate or process exit) and can drop the value at will.
// Failed loads are never stored.
type Slot[T any] struct {
	name    string
	backend Backend
	ttl     time.Duration
}

// NewSlot returns a slot named name. The name is the backend key and the metrics label.
func NewSlot[T any](name string, backend Backend, ttl time.Duration) *Slot[T] {
	if backend == nil {
		backend = NewInMemoryBackend()
	}
	return &Slot[T]{name: name, backend: backend, ttl: ttl}
}

// Name returns the slot name.
func (s *Slot[T]) Name() string { return s.name }

// Get returns the stored value. An undecodable entry is reported as a miss.
func (s *Slot[T]) Get(ctx context.Context) (T, bool, error) {
	var zero T
	raw, ok, err := s.backend.Get(ctx, s.key())
	if err != nil {
		return zero, false, fmt.Errorf("slot %s get: %w", s.name, err)
	}
	if !ok {
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, nil
	}
	return v, true, nil
}

// Set stores v for the slot TTL.
func (s *Slot[T]) Set(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("slot %s encode: %w", s.name, err)
	}
	if err := s.backend.Set(ctx, s.key(), raw, s.ttl); err != nil {
		return fmt.Errorf("slot %s set: %w", s.name, err)
	}
	return nil
}

// GetOrLoad returns the stored value, or calls load and stores its result on success.
// A backend failure is treated as a miss; the loaded value is still returned when
// storing it fails. Concurrent callers that miss together each call load.
func (s *Slot[T]) GetOrLoad(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	v, ok, err := s.Get(ctx)
	switch {
	case err != nil:
		observability.MemoSlotLookupsTotal.WithLabelValues(s.name, "error").Inc()
	case ok:
		observability.MemoSlotLookupsTotal.WithLabelValues(s.name, "hit").Inc()
		return v, nil
	default:
		observability.MemoSlotLookupsTotal.WithLabelValues(s.name, "miss").Inc()
	}

	v, err = load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = s.Set(ctx, v)
	return v, nil
}

// Invalidate drops the stored value so the next GetOrLoad reloads.
func (s *Slot[T]) Invalidate(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key()); err != nil {
		return fmt.Errorf("slot %s invalidate: %w", s.name, err)
	}
	return nil
}

func (s *Slot[T]) key() string {
	return "slot:" + s.name
}
