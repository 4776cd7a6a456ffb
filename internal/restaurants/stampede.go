package restaurants

import "sync"

// missTracker counts misses in progress per city so overlapping fetches for the same
// city can be reported. It does not hold back the duplicate fetch.
type missTracker struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{active: make(map[string]int)}
}

// begin records a miss for key and returns how many are now in progress, including this one.
// Callers defer end(key).
func (m *missTracker) begin(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[key]++
	return m.active[key]
}

func (m *missTracker) end(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.active[key]; ok && n > 0 {
		m.active[key]--
		if m.active[key] == 0 {
			delete(m.active, key)
		}
	}
}
