package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

type ActiveTokenRepository interface {
	Create(ctx context.Context, t *domain.ActiveAccessToken) error
	ListByUserID(ctx context.Context, userID string) ([]domain.ActiveAccessToken, error)
	FindByIDForUser(ctx context.Context, userID string, id uint) (*domain.ActiveAccessToken, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormActiveTokenRepository struct{ db *gorm.DB }

func NewActiveTokenRepository(db *gorm.DB) *GormActiveTokenRepository {
	return &GormActiveTokenRepository{db: db}
}

// Create surfaces a duplicate token as ErrDuplicateKey.
func (r *GormActiveTokenRepository) Create(ctx context.Context, t *domain.ActiveAccessToken) error {
	err := translate(r.db.WithContext(ctx).Create(t).Error, ErrTokenNotFound)
	record(ctx, "active_token", "create", err)
	return err
}

func (r *GormActiveTokenRepository) ListByUserID(ctx context.Context, userID string) ([]domain.ActiveAccessToken, error) {
	tokens := []domain.ActiveAccessToken{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&tokens).Error
	record(ctx, "active_token", "list_by_user_id", err)
	return tokens, err
}

func (r *GormActiveTokenRepository) FindByIDForUser(ctx context.Context, userID string, id uint) (*domain.ActiveAccessToken, error) {
	var t domain.ActiveAccessToken
	err := translate(r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Take(&t).Error, ErrTokenNotFound)
	record(ctx, "active_token", "find_by_id_for_user", err)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormActiveTokenRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res := r.db.WithContext(ctx).Where("access_token = ?", token).Delete(&domain.ActiveAccessToken{})
	record(ctx, "active_token", "delete_by_token", res.Error)
	return res.RowsAffected > 0, res.Error
}

func (r *GormActiveTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.ActiveAccessToken{})
	record(ctx, "active_token", "delete_by_user_id", res.Error)
	return res.RowsAffected, res.Error
}

func (r *GormActiveTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&domain.ActiveAccessToken{})
	record(ctx, "active_token", "delete_expired", res.Error)
	return res.RowsAffected, res.Error
}

type BlacklistRepository interface {
	Add(ctx context.Context, token string, at time.Time) error
	Exists(ctx context.Context, token string) (bool, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type GormBlacklistRepository struct{ db *gorm.DB }

func NewBlacklistRepository(db *gorm.DB) *GormBlacklistRepository {
	return &GormBlacklistRepository{db: db}
}

// Add is idempotent: an existing row, or one inserted concurrently, is left as is.
func (r *GormBlacklistRepository) Add(ctx context.Context, token string, at time.Time) error {
	exists, err := r.Exists(ctx, token)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&domain.BlacklistedToken{Token: token, BlacklistedAt: at.UTC()}).Error
	record(ctx, "blacklist", "add", err)
	return err
}

func (r *GormBlacklistRepository) Exists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BlacklistedToken{}).Where("token = ?", token).Limit(1).Count(&count).Error
	record(ctx, "blacklist", "exists", err)
	return count > 0, err
}

func (r *GormBlacklistRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("blacklisted_at < ?", before.UTC()).Delete(&domain.BlacklistedToken{})
	record(ctx, "blacklist", "delete_before", res.Error)
	return res.RowsAffected, res.Error
}

type TokenUsageRepository interface {
	CountSince(ctx context.Context, token string, since time.Time) (int64, error)
	Record(ctx context.Context, token string, at time.Time) error
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type GormTokenUsageRepository struct{ db *gorm.DB }

func NewTokenUsageRepository(db *gorm.DB) *GormTokenUsageRepository {
	return &GormTokenUsageRepository{db: db}
}

func (r *GormTokenUsageRepository) CountSince(ctx context.Context, token string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.TokenUsageLog{}).
		Where("token = ? AND requested_at >= ?", token, since.UTC()).
		Count(&count).Error
	record(ctx, "token_usage", "count_since", err)
	return count, err
}

func (r *GormTokenUsageRepository) Record(ctx context.Context, token string, at time.Time) error {
	err := r.db.WithContext(ctx).Create(&domain.TokenUsageLog{Token: token, RequestedAt: at.UTC()}).Error
	record(ctx, "token_usage", "record", err)
	return err
}

func (r *GormTokenUsageRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("requested_at < ?", before.UTC()).Delete(&domain.TokenUsageLog{})
	record(ctx, "token_usage", "delete_before", res.Error)
	return res.RowsAffected, res.Error
}
