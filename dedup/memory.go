package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Ledger for tests and single-node runs.
// Expired claims are dropped lazily on access.
type Memory struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry

	now func() time.Time
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithClock overrides the ledger's time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Ledger = (*Memory)(nil)

// ClaimOnce marks key as claimed if no live claim exists.
func (m *Memory) ClaimOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("dedup: empty request key")
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.claims[key]; ok && expiry.After(now) {
		return false, nil
	}
	m.claims[key] = now.Add(normalizeTTL(ttl))
	return true, nil
}

// Len reports the number of tracked claims, including expired ones not
// yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}
