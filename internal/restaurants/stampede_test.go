package restaurants

import (
	"sync"
	"testing"
)

func TestMissTracker_BeginEnd(t *testing.T) {
	m := newMissTracker()
	if got := m.begin("oslo"); got != 1 {
		t.Errorf("begin first = %d, want 1", got)
	}
	if got := m.begin("oslo"); got != 2 {
		t.Errorf("begin second = %d, want 2", got)
	}
	m.end("oslo")
	m.end("oslo")
	if got := m.begin("oslo"); got != 1 {
		t.Errorf("after all ended, begin = %d, want 1", got)
	}
	m.end("oslo")
	m.end("oslo") // extra end is a no-op
	if len(m.active) != 0 {
		t.Errorf("active = %v, want empty", m.active)
	}
}

func TestMissTracker_Concurrent(t *testing.T) {
	m := newMissTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.begin("paris")
			m.end("paris")
		}()
	}
	wg.Wait()
	if got := m.begin("paris"); got != 1 {
		t.Errorf("begin = %d, want 1", got)
	}
}
