package admission

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// bucket is the per-tenant state held by the in-memory limiter.
// Timestamps are whole seconds, mirroring the shared-store layout.
type bucket struct {
	tokens     int
	lastRefill int64
}

// Memory is a Limiter holding buckets in process memory. It applies the
// exact numeric semantics of the Redis limiter (integer-second clock,
// floor refill, last_refill always advanced) and is intended for tests
// and single-node deployments where no shared store exists.
type Memory struct {
	mu      sync.Mutex
	config  Config
	buckets map[string]*bucket

	now func() time.Time
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the limiter's time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-memory limiter. Zero-valued Config fields
// fall back to the defaults.
func NewMemory(cfg Config, opts ...MemoryOption) *Memory {
	m := &Memory{
		config:  cfg.withDefaults(),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Limiter = (*Memory)(nil)

// TryConsume refills and consumes under a single lock acquisition, the
// in-process equivalent of the server-side script.
func (m *Memory) TryConsume(_ context.Context, tenantID string, requested int) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("admission: empty tenant id")
	}
	if requested <= 0 {
		requested = 1
	}

	now := m.now().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[tenantID]
	if !ok {
		// First access: bucket starts full.
		b = &bucket{tokens: m.config.Capacity, lastRefill: now}
		m.buckets[tenantID] = b
	}

	delta := now - b.lastRefill
	if delta < 0 {
		delta = 0
	}
	refill := int(delta) * m.config.RefillRate
	b.tokens += refill
	if b.tokens > m.config.Capacity {
		b.tokens = m.config.Capacity
	}
	// Advanced unconditionally, matching the shared-store script: a
	// sub-second fraction that earned no token is forfeited.
	b.lastRefill = now

	if b.tokens < requested {
		return false, nil
	}
	b.tokens -= requested
	return true, nil
}

// Tokens reports the current balance for a tenant without refilling.
// Unknown tenants report the full capacity (buckets start full).
func (m *Memory) Tokens(tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[tenantID]; ok {
		return b.tokens
	}
	return m.config.Capacity
}
