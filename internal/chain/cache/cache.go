// Package cache keeps recent on-chain verification status reads out of the
// RPC node. Entries are invalidated by the recorder on add and revoke.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	platformredis "verigate/internal/platform/redis"
)

const keyPrefix = "chain:status:"

// StatusCache is a TTL cache over getVerificationStatus reads. A nil
// StatusCache is valid and caches nothing, for deployments without Redis.
type StatusCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func New(client *platformredis.Client, ttl time.Duration) *StatusCache {
	if client == nil {
		return nil
	}
	return &StatusCache{client: client, ttl: ttl}
}

func key(walletAddress string) string {
	return keyPrefix + strings.ToLower(walletAddress)
}

// Get returns the cached status and whether it was present. Cache errors
// degrade to a miss.
func (c *StatusCache) Get(ctx context.Context, walletAddress string) (bool, bool) {
	if c == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, key(walletAddress)).Result()
	if err != nil {
		return false, false
	}
	verified, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return verified, true
}

// Set stores the status under the configured TTL. Errors are dropped; the
// cache is best effort.
func (c *StatusCache) Set(ctx context.Context, walletAddress string, verified bool) {
	if c == nil {
		return
	}
	c.client.Set(ctx, key(walletAddress), strconv.FormatBool(verified), c.ttl)
}

// Invalidate drops the cached status after a state-changing transaction.
func (c *StatusCache) Invalidate(ctx context.Context, walletAddress string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, key(walletAddress))
}
