package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLock keeps replicas from sweeping at the same time. release is only
// meaningful when ok is true.
type SweepLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

type NoopSweepLock struct{}

func (NoopSweepLock) Acquire(context.Context, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisSweepLock struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSweepLock(client redis.UniversalClient, key string) *RedisSweepLock {
	if key == "" {
		key = "auth:sweep:lock"
	}
	return &RedisSweepLock{client: client, key: key}
}

func (l *RedisSweepLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		// Detached so a cancelled sweep still frees the lease.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(rctx, l.client, []string{l.key}, owner).Err()
	}
	return release, true, nil
}
