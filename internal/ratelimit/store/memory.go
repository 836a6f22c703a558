package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// Memory is an in-memory implementation of Store using a map with mutex protection.
//
// State is process-local and lost on restart. Running more than one instance
// multiplies the effective limit; use the Redis store for that.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	now      func() time.Time
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithSweepInterval sets how often expired entries are removed (default: 1 hour).
// The sweep only reclaims memory; Admit ignores expired entries on its own.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock replaces time.Now. Used by tests to move across window boundaries.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates a new in-memory store with a background sweep of expired entries.
//
// Important: You must call Close() when done to stop the sweep goroutine.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:  make(map[string]*memoryEntry),
		now:      time.Now,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.sweepLoop()
	return m
}

// Admit applies the fixed-window admission rule under the store lock.
//
// Note: The context parameter is accepted for interface compatibility but is not used.
func (m *Memory) Admit(_ context.Context, key string, limit int64, window time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, exists := m.entries[key]

	if !exists || now.After(entry.resetAt) {
		entry = &memoryEntry{
			count:   1,
			resetAt: now.Add(window),
		}
		m.entries[key] = entry
		return Decision{Allowed: true, Count: 1, ResetAt: entry.resetAt}, nil
	}

	if entry.count >= limit {
		return Decision{Allowed: false, Count: entry.count, ResetAt: entry.resetAt}, nil
	}

	entry.count++
	return Decision{Allowed: true, Count: entry.count, ResetAt: entry.resetAt}, nil
}

// Get retrieves the current count for the given key without incrementing.
func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists || m.now().After(entry.resetAt) {
		return 0, nil
	}

	return entry.count, nil
}

// Reset removes the counter for the given key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	return nil
}

// Len returns the number of tracked keys, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep removes every entry whose window has expired and returns how many it dropped.
func (m *Memory) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if now.After(entry.resetAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}
