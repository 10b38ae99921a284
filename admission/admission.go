// Package admission implements per-tenant admission control using a
// token bucket shared by every API and worker process.
//
// Each tenant holds a bucket with a capped token balance that refills at
// a fixed rate. A request is admitted only if the bucket can pay for it;
// the read-refill-check-write sequence executes as one indivisible
// operation against the shared store, so concurrent callers across
// processes never act on intermediate state.
package admission

import "context"

// Default bucket parameters, uniform across tenants. Per-tenant
// overrides are deliberately not supported in the current design.
const (
	DefaultCapacity   = 50
	DefaultRefillRate = 10 // tokens per second
)

// Limiter decides whether a tenant may submit more work right now.
type Limiter interface {
	// TryConsume atomically refills the tenant's bucket for elapsed
	// time and, if the balance covers requested tokens, consumes them.
	// Returns false if the tenant is over quota. A denial is terminal
	// for the attempt; the limiter never retries on the caller's behalf.
	//
	// A non-nil error means the shared store could not be reached; the
	// request is denied in that case (fail closed).
	TryConsume(ctx context.Context, tenantID string, requested int) (bool, error)
}

// Config holds the bucket parameters applied to every tenant.
type Config struct {
	// Capacity is the maximum token balance (burst size).
	Capacity int

	// RefillRate is the number of tokens credited per elapsed second.
	RefillRate int
}

// DefaultConfig returns the uniform bucket parameters.
func DefaultConfig() Config {
	return Config{
		Capacity:   DefaultCapacity,
		RefillRate: DefaultRefillRate,
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.RefillRate <= 0 {
		c.RefillRate = DefaultRefillRate
	}
	return c
}
