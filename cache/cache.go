/*
Package cache provides the company-stats cache abstraction.

PURPOSE:
  The engine invalidates a cached "company stats" entry on every mutating
  operation; the stats endpoint reads through the cache. The abstraction is
  explicit (get/set/invalidate, injected into the engine) so that multiple
  server instances can share invalidation through a process-external
  backend — never in-process singleton state.

IMPLEMENTATIONS:
  - Memory: in-process with TTL, for dev and tests
  - Redis:  process-external, shared across instances (redis.go)
*/
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds staleness when an invalidation is missed.
const DefaultTTL = 5 * time.Minute

// StatsCache caches serialized stats payloads keyed by company id.
// Get returns (nil, nil) on a miss.
type StatsCache interface {
	Get(ctx context.Context, companyID string) ([]byte, error)
	Set(ctx context.Context, companyID string, payload []byte) error
	Invalidate(ctx context.Context, companyID string) error
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

// Memory is an in-process StatsCache with TTL expiry. Suitable for a single
// instance only; multi-instance deployments use the Redis backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemory creates a memory cache with the given TTL (DefaultTTL if zero).
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, companyID string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[companyID]
	m.mu.RUnlock()

	if !ok || m.clock().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.payload, nil
}

func (m *Memory) Set(_ context.Context, companyID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[companyID] = memoryEntry{payload: payload, expiresAt: m.clock().Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, companyID)
	return nil
}
