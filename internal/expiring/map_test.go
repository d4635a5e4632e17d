package expiring

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMap(t *testing.T, ttl time.Duration) (*Map[string, int], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m := New[string, int](ttl, WithClock(clock.Now), WithoutSweeper())
	t.Cleanup(m.Stop)
	return m, clock
}

func TestSetThenGet(t *testing.T) {
	m, _ := newTestMap(t, time.Minute)

	m.Set("a", 1)

	got, ok := m.Get("a")
	if !ok || got != 1 {
		t.Fatalf("Get(a) = (%d, %v), want (1, true)", got, ok)
	}

	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestGetLazilyExpires(t *testing.T) {
	m, clock := newTestMap(t, time.Minute)

	m.Set("a", 1)
	clock.Advance(59 * time.Second)
	if _, ok := m.Get("a"); !ok {
		t.Fatal("entry expired before TTL")
	}

	clock.Advance(time.Second)
	if _, ok := m.Get("a"); ok {
		t.Fatal("Get returned an expired entry")
	}

	if m.Len() != 0 {
		t.Errorf("expired entry not removed on read, Len() = %d", m.Len())
	}
}

func TestSetResetsExpiry(t *testing.T) {
	m, clock := newTestMap(t, time.Minute)

	m.Set("a", 1)
	clock.Advance(50 * time.Second)
	m.Set("a", 2)
	clock.Advance(50 * time.Second)

	got, ok := m.Get("a")
	if !ok || got != 2 {
		t.Fatalf("Get(a) = (%d, %v), want (2, true)", got, ok)
	}
}

func TestUpdate(t *testing.T) {
	m, clock := newTestMap(t, time.Minute)

	if m.Update("a", func(v int) int { return v + 1 }) {
		t.Fatal("Update on missing key reported success")
	}

	m.Set("a", 1)
	clock.Advance(45 * time.Second)
	if !m.Update("a", func(v int) int { return v + 10 }) {
		t.Fatal("Update on live key failed")
	}

	clock.Advance(45 * time.Second)
	got, ok := m.Get("a")
	if !ok || got != 11 {
		t.Fatalf("Get(a) = (%d, %v), want (11, true)", got, ok)
	}

	clock.Advance(time.Minute)
	called := false
	if m.Update("a", func(v int) int { called = true; return v }) {
		t.Error("Update on expired key reported success")
	}
	if called {
		t.Error("Update called fn for an expired key")
	}
}

func TestSetIfAbsent(t *testing.T) {
	m, clock := newTestMap(t, time.Minute)

	if !m.SetIfAbsent("a", 1) {
		t.Fatal("first SetIfAbsent failed")
	}
	if m.SetIfAbsent("a", 2) {
		t.Fatal("SetIfAbsent overwrote a live entry")
	}

	clock.Advance(time.Minute)
	if !m.SetIfAbsent("a", 3) {
		t.Fatal("SetIfAbsent refused to replace an expired entry")
	}
	if got, _ := m.Get("a"); got != 3 {
		t.Errorf("Get(a) = %d, want 3", got)
	}
}

func TestSweepConvergesToLiveEntries(t *testing.T) {
	m, clock := newTestMap(t, time.Minute)

	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("old-%d", i), i)
	}
	clock.Advance(40 * time.Second)
	for i := 0; i < 3; i++ {
		m.Set(fmt.Sprintf("new-%d", i), i)
	}
	clock.Advance(30 * time.Second)

	if m.Len() != 13 {
		t.Fatalf("Len() before sweep = %d, want 13", m.Len())
	}

	removed := m.Sweep()
	if removed != 10 {
		t.Errorf("Sweep() removed %d, want 10", removed)
	}
	if m.Len() != 3 {
		t.Errorf("Len() after sweep = %d, want 3", m.Len())
	}
}

func TestDelete(t *testing.T) {
	m, _ := newTestMap(t, time.Minute)

	m.Set("a", 1)
	m.Delete("a")
	m.Delete("never-set")

	if _, ok := m.Get("a"); ok {
		t.Error("deleted key still present")
	}
}

func TestBackgroundSweeper(t *testing.T) {
	m := New[string, int](20*time.Millisecond, WithSweepInterval(5*time.Millisecond))
	defer m.Stop()

	m.Set("a", 1)
	m.Set("b", 2)

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not remove expired entries, Len() = %d", m.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := New[string, int](time.Second)
	m.Stop()
	m.Stop()
}

func TestNewPanicsOnNonPositiveTTL(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(0) did not panic")
		}
	}()
	New[string, int](0)
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int](time.Minute)
	defer m.Stop()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := (w * 1000) + i
				m.Set(key, i)
				if _, ok := m.Get(key); !ok {
					t.Errorf("key %d missing right after Set", key)
					return
				}
				m.Update(key, func(v int) int { return v + 1 })
			}
		}(w)
	}
	wg.Wait()

	if m.Len() != 8*500 {
		t.Errorf("Len() = %d, want %d", m.Len(), 8*500)
	}
}
