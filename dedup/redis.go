package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Ledger backed by a shared Redis instance. The marker is
// written with SET NX EX, so the existence check and the TTL attach are
// one atomic server-side operation. The caller owns the client lifecycle.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a Redis-backed ledger.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

var _ Ledger = (*Redis)(nil)

// ClaimOnce sets the claim marker if absent and reports whether this
// call performed the first claim.
func (r *Redis) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("dedup: empty request key")
	}

	ok, err := r.client.SetNX(ctx, claimKey(key), "1", normalizeTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: claim %q: %w", key, err)
	}
	return ok, nil
}

// claimKey returns the marker key: mtask:claim:{request_key}
func claimKey(requestKey string) string {
	return "mtask:claim:" + requestKey
}
