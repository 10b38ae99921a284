package queue

import (
	"fmt"

	"golang.org/x/time/rate"
)

// TenantConfig throttles one tenant's dispatch on one queue. This is
// dispatch-side smoothing inside a worker process; whether the tenant's
// submission was accepted at all is decided earlier by the shared
// admission bucket.
type TenantConfig struct {
	// QueueName is the queue this config applies to.
	QueueName string

	// TenantID matches task.TenantID.
	TenantID string

	// RateLimit is the sustained tasks per second dispatched for this
	// tenant.
	RateLimit float64

	// RateBurst is the burst size for the tenant's rate limiter.
	RateBurst int

	// MaxConcurrency limits simultaneous tasks for this tenant on this
	// queue. Zero means no tenant-specific concurrency limit.
	MaxConcurrency int
}

// tenantState tracks runtime state for a single queue+tenant pair.
type tenantState struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

// tenantKey builds the map key for a queue+tenant pair.
func tenantKey(queue, tenantID string) string {
	return fmt.Sprintf("%s:%s", queue, tenantID)
}

// SetTenantConfig installs or replaces the dispatch throttle for a
// queue+tenant pair. The active count survives reconfiguration so
// in-flight tasks are still released correctly.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenantKey(cfg.QueueName, cfg.TenantID)
	existing := m.tenants[key]

	ts := &tenantState{
		maxConcurrency: cfg.MaxConcurrency,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ts.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ts.active = existing.active
	}
	m.tenants[key] = ts
}

// TenantActiveCount reports how many of a tenant's tasks are currently
// executing on the given queue.
func (m *Manager) TenantActiveCount(queue, tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.tenants[tenantKey(queue, tenantID)]; ts != nil {
		return ts.active
	}
	return 0
}
