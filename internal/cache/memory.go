package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a cached value with an absolute expiration time.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Stats tracks MemoryStore hit/miss/eviction counters for operability.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// MemoryStore is a thread-safe, in-process TTL cache. It backs the edge
// response cache and the upstream fetch-cache hint layer — both are
// advisory, process-local caches that are fine to lose on restart.
//
// TTL here is a throttle: how long an entry is considered fresh before a
// background sweep evicts it. Readers must tolerate a slightly stale entry
// within that window: callers get stale-but-type-correct data, never an error.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	stats   Stats

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its background eviction
// sweep (every minute, matching the cadence useful at this cache's TTLs of
// minutes-to-days).
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		entries:   make(map[string]entry),
		stopSweep: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweep:
			return
		}
	}
}

func (m *MemoryStore) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, key)
			m.stats.Evictions++
		}
	}
}

// Close stops the background sweep goroutine.
func (m *MemoryStore) Close() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		m.stats.Misses++
		m.mu.Unlock()
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.stats.Misses++
		m.stats.Evictions++
		m.mu.Unlock()
		return nil, false, nil
	}

	m.mu.Lock()
	m.stats.Hits++
	m.mu.Unlock()
	return e.value, true, nil
}

// Put implements Store. A zero or negative ttl means "never expires",
// matching BadgerStore's WithTTL-skipped-when-zero convention.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: expiresAt}
	return nil
}

// Stats returns a snapshot of the store's hit/miss/eviction counters.
func (m *MemoryStore) StatsSnapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
