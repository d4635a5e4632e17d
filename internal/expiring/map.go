package expiring

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	expiry time.Time
}

// Map is a key/value store with a per-entry time-to-live.
type Map[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time

	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

// Option configures a Map.
type Option func(*options)

type options struct {
	now           func() time.Time
	sweepInterval time.Duration
	noSweep       bool
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval overrides the default TTL/2 sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithoutSweeper disables the background goroutine. Callers may still run
// Sweep manually.
func WithoutSweeper() Option {
	return func(o *options) { o.noSweep = true }
}

// New creates a Map whose entries live for ttl after their last write and
// starts its sweeper. Call Stop to release the goroutine.
func New[K comparable, V any](ttl time.Duration, opts ...Option) *Map[K, V] {
	if ttl <= 0 {
		panic("expiring: ttl must be positive")
	}

	o := options{
		now:           time.Now,
		sweepInterval: ttl / 2,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sweepInterval <= 0 {
		o.sweepInterval = ttl
	}

	m := &Map[K, V]{
		entries:       make(map[K]entry[V]),
		ttl:           ttl,
		now:           o.now,
		sweepInterval: o.sweepInterval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}

	if o.noSweep {
		close(m.done)
	} else {
		go m.sweepLoop()
	}

	return m
}

// TTL returns the configured time-to-live.
func (m *Map[K, V]) TTL() time.Duration {
	return m.ttl
}

// Set stores value under key and resets its expiry to now+TTL.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry[V]{value: value, expiry: m.now().Add(m.ttl)}
}

// Get returns the live value for key. An entry whose expiry has passed is
// removed and reported as absent.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !m.now().Before(e.expiry) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := m.entries[key]; still && !m.now().Before(cur.expiry) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Update applies fn to the live value under key and stores the result with a
// fresh expiry. It returns false, without calling fn, when the key is absent
// or expired.
func (m *Map[K, V]) Update(key K, fn func(V) V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	now := m.now()
	if !now.Before(e.expiry) {
		delete(m.entries, key)
		return false
	}

	m.entries[key] = entry[V]{value: fn(e.value), expiry: now.Add(m.ttl)}
	return true
}

// SetIfAbsent stores value only when no live entry exists for key. It
// reports whether the value was stored.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiry) {
		return false
	}
	m.entries[key] = entry[V]{value: value, expiry: now.Add(m.ttl)}
	return true
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Len returns the number of stored entries, including expired ones that
// have not been swept yet.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Map[K, V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if !now.Before(e.expiry) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Stop terminates the background sweeper. It is safe to call more than once.
func (m *Map[K, V]) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	<-m.done
}

func (m *Map[K, V]) sweepLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}
