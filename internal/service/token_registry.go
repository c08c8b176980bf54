package service

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
)

// TokenRegistry enumerates issued access tokens so they can be revoked in
// bulk. It is never consulted to authorize a request.
type TokenRegistry struct {
	repo repository.ActiveTokenRepository
}

func NewTokenRegistry(repo repository.ActiveTokenRepository) *TokenRegistry {
	return &TokenRegistry{repo: repo}
}

func (r *TokenRegistry) Register(ctx context.Context, userID string, issued security.IssuedToken) error {
	err := r.repo.Create(ctx, &domain.ActiveAccessToken{
		UserID:      userID,
		AccessToken: issued.Token,
		ExpiresAt:   issued.ExpiresAt.UTC(),
	})
	return persistence("register access token", err)
}

func (r *TokenRegistry) ListForUser(ctx context.Context, userID string) ([]domain.ActiveAccessToken, error) {
	tokens, err := r.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, persistence("list access tokens", err)
	}
	return tokens, nil
}

func (r *TokenRegistry) FindForUser(ctx context.Context, userID string, id uint) (*domain.ActiveAccessToken, error) {
	t, err := r.repo.FindByIDForUser(ctx, userID, id)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, persistence("find access token", err)
	}
	return t, nil
}

// RevokeOne reports false when the token was not registered.
func (r *TokenRegistry) RevokeOne(ctx context.Context, token string) (bool, error) {
	ok, err := r.repo.DeleteByToken(ctx, token)
	if err != nil {
		return false, persistence("revoke access token", err)
	}
	return ok, nil
}

func (r *TokenRegistry) RevokeAllForUser(ctx context.Context, userID string) (bool, error) {
	n, err := r.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return false, persistence("revoke user access tokens", err)
	}
	return n > 0, nil
}

func (r *TokenRegistry) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.repo.DeleteExpired(ctx, now)
}
