package cache

import (
	"strings"
	"testing"
)

// TestMemcachedBackend_KeysScopedToProcess verifies two backends never share a
// slot key, so a restarted process does not see the previous one's memo entries.
func TestMemcachedBackend_KeysScopedToProcess(t *testing.T) {
	first, err := NewMemcachedBackend("localhost:11211", 0, 0)
	if err != nil {
		t.Fatalf("NewMemcachedBackend() error = %v", err)
	}
	second, err := NewMemcachedBackend("localhost:11211", 0, 0)
	if err != nil {
		t.Fatalf("NewMemcachedBackend() error = %v", err)
	}

	a, b := first.key("offers"), second.key("offers")
	if a == b {
		t.Errorf("key(%q) = %q for both backends", "offers", a)
	}
	if first.key("offers") != a {
		t.Error("key is not stable within one backend")
	}
	for _, k := range []string{a, b} {
		if !strings.HasPrefix(k, keyPrefix) || !strings.HasSuffix(k, ":offers") {
			t.Errorf("key = %q", k)
		}
		if len(k) > 250 || strings.ContainsAny(k, " \t\r\n") {
			t.Errorf("key %q is not a valid memcached key", k)
		}
	}
}
