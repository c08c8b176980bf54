package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRevokedTokenCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRevokedTokenCache(client redis.UniversalClient, prefix string) *RedisRevokedTokenCache {
	if prefix == "" {
		prefix = "revoked_token"
	}
	return &RedisRevokedTokenCache{client: client, prefix: prefix}
}

func (c *RedisRevokedTokenCache) Contains(ctx context.Context, token string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	err := c.client.Get(ctx, c.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisRevokedTokenCache) Add(ctx context.Context, token string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(token), "1", ttl).Err()
}

func (c *RedisRevokedTokenCache) key(token string) string {
	return c.prefix + ":" + hashToken(token)
}

// hashToken keeps raw bearer tokens out of cache keys.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
