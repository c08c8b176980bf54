package service

import (
	"context"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
)

type RateDecision struct {
	Limited bool
	// Count is the number of requests seen in the window before this one.
	Count   int64
	Limit   int
	ResetAt time.Time
}

func (d RateDecision) Remaining() int {
	r := int64(d.Limit) - d.Count - 1
	if r < 0 {
		return 0
	}
	return int(r)
}

// RateLimiter counts requests per bearer token over a sliding window backed
// by the usage log table.
type RateLimiter struct {
	usage     repository.TokenUsageRepository
	registry  *TokenRegistry
	blacklist *Blacklist
	retention time.Duration
	now       func() time.Time
}

func NewRateLimiter(usage repository.TokenUsageRepository, registry *TokenRegistry, blacklist *Blacklist, retention time.Duration) *RateLimiter {
	return &RateLimiter{
		usage:     usage,
		registry:  registry,
		blacklist: blacklist,
		retention: retention,
		now:       time.Now,
	}
}

// IsRateLimited counts first and then records the current request, so the
// request that trips the limit is itself counted for later windows.
func (l *RateLimiter) IsRateLimited(ctx context.Context, token string, maxRequests int, period time.Duration) (RateDecision, error) {
	now := l.now().UTC()
	count, err := l.usage.CountSince(ctx, token, now.Add(-period))
	if err != nil {
		return RateDecision{}, persistence("count token usage", err)
	}
	if err := l.usage.Record(ctx, token, now); err != nil {
		return RateDecision{}, persistence("record token usage", err)
	}
	return RateDecision{
		Limited: count >= int64(maxRequests),
		Count:   count,
		Limit:   maxRequests,
		ResetAt: now.Add(period),
	}, nil
}

// Blacklist deregisters the live token and denies it permanently.
func (l *RateLimiter) Blacklist(ctx context.Context, token string) error {
	if _, err := l.registry.RevokeOne(ctx, token); err != nil {
		return err
	}
	return l.blacklist.Add(ctx, token)
}

func (l *RateLimiter) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return l.usage.DeleteBefore(ctx, now.Add(-l.retention))
}
