package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByToken(ctx context.Context, refreshToken string) (*domain.Session, error)
	RevokeByToken(ctx context.Context, refreshToken string) (bool, error)
	RevokeByUserID(ctx context.Context, userID string) (int64, error)
	ListActiveByUserID(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) *GormSessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := translate(r.db.WithContext(ctx).Create(s).Error, ErrSessionNotFound)
	record(ctx, "session", "create", err)
	return err
}

func (r *GormSessionRepository) FindByToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var s domain.Session
	err := translate(r.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).Take(&s).Error, ErrSessionNotFound)
	record(ctx, "session", "find_by_token", err)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeByToken reports false when no session carries the token. Revoking an
// already revoked session is a successful no-op.
func (r *GormSessionRepository) RevokeByToken(ctx context.Context, refreshToken string) (bool, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Select("id", "revoked").Where("refresh_token = ?", refreshToken).Take(&s).Error
	if err != nil {
		err = translate(err, ErrSessionNotFound)
		record(ctx, "session", "revoke_by_token", err)
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if !s.Revoked {
		err = r.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", s.ID).Update("revoked", true).Error
	}
	record(ctx, "session", "revoke_by_token", err)
	return err == nil, err
}

func (r *GormSessionRepository) RevokeByUserID(ctx context.Context, userID string) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Session{}).
			Where("user_id = ? AND revoked = ?", userID, false).
			Update("revoked", true)
		affected = res.RowsAffected
		return res.Error
	})
	record(ctx, "session", "revoke_by_user_id", err)
	return affected, err
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	sessions := []domain.Session{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now.UTC()).
		Order("created_at DESC").
		Find(&sessions).Error
	record(ctx, "session", "list_active_by_user_id", err)
	return sessions, err
}

func (r *GormSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&domain.Session{})
	record(ctx, "session", "delete_expired", res.Error)
	return res.RowsAffected, res.Error
}
