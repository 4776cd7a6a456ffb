//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"
)

// TestMemcachedBackend_Slot_Integration verifies a Slot round-trips through a
// live memcached when one is available.
func TestMemcachedBackend_Slot_Integration(t *testing.T) {
	b, err := NewMemcachedBackend("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedBackend() error = %v", err)
	}
	defer b.Close()
	if err := b.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	ctx := context.Background()
	slot := NewSlot[[]string]("integration-offers", b, time.Minute)
	if err := slot.Set(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := slot.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if len(got) != 2 || got[1] != "b" {
		t.Errorf("Get() = %v", got)
	}
	if err := slot.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok, _ := slot.Get(ctx); ok {
		t.Error("Get() after Invalidate ok = true")
	}
}

// TestMemcachedBackend_RestartStartsEmpty verifies a new backend does not read
// entries stored by an earlier one.
func TestMemcachedBackend_RestartStartsEmpty(t *testing.T) {
	before, err := NewMemcachedBackend("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedBackend() error = %v", err)
	}
	defer before.Close()
	if err := before.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}
	ctx := context.Background()
	if err := NewSlot[string]("integration-restart", before, 0).Set(ctx, "stale"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	after, err := NewMemcachedBackend("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedBackend() error = %v", err)
	}
	defer after.Close()
	if _, ok, err := NewSlot[string]("integration-restart", after, 0).Get(ctx); err != nil || ok {
		t.Errorf("Get() after restart = ok %v, err %v; want miss", ok, err)
	}
}
