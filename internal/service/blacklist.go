package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
)

// Blacklist is the durable deny-list for access tokens. Presence rejects a
// token regardless of its signature until the retention sweep removes it.
type Blacklist struct {
	repo      repository.BlacklistRepository
	cache     RevokedTokenCache
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewBlacklist(repo repository.BlacklistRepository, cache RevokedTokenCache, retention time.Duration, logger *slog.Logger) *Blacklist {
	if cache == nil {
		cache = NewNoopRevokedTokenCache()
	}
	return &Blacklist{repo: repo, cache: cache, retention: retention, now: time.Now, logger: logger}
}

func (b *Blacklist) Add(ctx context.Context, token string) error {
	if err := b.repo.Add(ctx, token, b.now().UTC()); err != nil {
		return persistence("blacklist add", err)
	}
	if err := b.cache.Add(ctx, token, b.retention); err != nil {
		b.logger.WarnContext(ctx, "revoked token cache write failed", "error", err)
	}
	return nil
}

func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	hit, err := b.cache.Contains(ctx, token)
	if err != nil {
		b.logger.WarnContext(ctx, "revoked token cache read failed", "error", err)
	} else if hit {
		return true, nil
	}
	found, err := b.repo.Exists(ctx, token)
	if err != nil {
		return false, persistence("blacklist lookup", err)
	}
	if found {
		if err := b.cache.Add(ctx, token, b.retention); err != nil {
			b.logger.WarnContext(ctx, "revoked token cache write failed", "error", err)
		}
	}
	return found, nil
}

type revokedTokenPruner interface {
	Prune(now time.Time) int
}

// SweepExpired deletes rows past retention. A process-local cache is pruned
// in the same pass; the count covers stored rows only.
func (b *Blacklist) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if p, ok := b.cache.(revokedTokenPruner); ok {
		if n := p.Prune(now); n > 0 {
			b.logger.DebugContext(ctx, "revoked token cache pruned", "entries", n)
		}
	}
	return b.repo.DeleteBefore(ctx, now.Add(-b.retention))
}
