package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/fekuna/omnipos-checkout-service/internal/order"
	"github.com/fekuna/omnipos-checkout-service/pkg/cache"
)

const keyPrefix = "checkout:nonce:"

// RedisGuard claims nonces with SETNX. Keys hold a hash so raw nonces never
// land in Redis.
type RedisGuard struct {
	cache *cache.RedisClient
	ttl   time.Duration
}

var _ order.NonceGuard = (*RedisGuard)(nil)

func NewRedisGuard(c *cache.RedisClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGuard{cache: c, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, nonce string) (bool, error) {
	return g.cache.SetIfAbsent(ctx, key(nonce), time.Now().UTC().Format(time.RFC3339), g.ttl)
}

func key(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return keyPrefix + hex.EncodeToString(sum[:])
}
