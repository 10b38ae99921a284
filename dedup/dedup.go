// Package dedup implements the idempotency claim ledger: a logical
// request, identified by a caller- or server-generated key, results in
// at most one execution of side-effecting work, even when the queue
// redelivers a task or a caller resubmits.
//
// A claim is a set-if-absent marker with a TTL. There is no unclaim: a
// task that claims a key and then dies before completing suppresses the
// key for the rest of the TTL window unless it is retried through the
// same delivery chain. Claims expire, so a request replayed after the
// TTL is treated as new — bounded storage is the accepted tradeoff.
package dedup

import (
	"context"
	"time"
)

// DefaultTTL is the claim retention window applied when the caller
// passes a non-positive TTL.
const DefaultTTL = time.Hour

// Ledger records which request keys have been claimed.
type Ledger interface {
	// ClaimOnce atomically marks key as claimed if and only if no live
	// claim exists. It returns true for exactly one of any number of
	// concurrent callers with the same key. A non-nil error means the
	// shared store could not be reached; no claim is granted in that
	// case (fail closed).
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
