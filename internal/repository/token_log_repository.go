package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

type TokenLogQuery struct {
	PageRequest
	UserID string
	Action string
}

type TokenLogRepository interface {
	Create(ctx context.Context, l *domain.TokenLog) error
	LastByUserAction(ctx context.Context, userID, action string) (*domain.TokenLog, error)
	ListPaged(ctx context.Context, query TokenLogQuery) (PageResult[domain.TokenLog], error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type GormTokenLogRepository struct{ db *gorm.DB }

func NewTokenLogRepository(db *gorm.DB) *GormTokenLogRepository {
	return &GormTokenLogRepository{db: db}
}

func (r *GormTokenLogRepository) Create(ctx context.Context, l *domain.TokenLog) error {
	l.Timestamp = l.Timestamp.UTC()
	err := r.db.WithContext(ctx).Create(l).Error
	record(ctx, "token_log", "create", err)
	return err
}

// LastByUserAction returns nil without error when the user has no row for action.
func (r *GormTokenLogRepository) LastByUserAction(ctx context.Context, userID, action string) (*domain.TokenLog, error) {
	var l domain.TokenLog
	err := translate(r.db.WithContext(ctx).
		Where("user_id = ? AND action = ?", userID, action).
		Order("timestamp DESC").Order("id DESC").
		Take(&l).Error, ErrTokenNotFound)
	record(ctx, "token_log", "last_by_user_action", err)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *GormTokenLogRepository) ListPaged(ctx context.Context, query TokenLogQuery) (PageResult[domain.TokenLog], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.TokenLog]{Page: req.Page, Limit: req.Limit, Items: []domain.TokenLog{}}

	base := r.db.WithContext(ctx).Model(&domain.TokenLog{})
	if query.UserID != "" {
		base = base.Where("user_id = ?", query.UserID)
	}
	if query.Action != "" {
		base = base.Where("action = ?", query.Action)
	}
	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		record(ctx, "token_log", "list_paged", err)
		return PageResult[domain.TokenLog]{}, err
	}
	err := base.Order("timestamp DESC").Order("id DESC").
		Offset(req.offset()).Limit(req.Limit).
		Find(&result.Items).Error
	record(ctx, "token_log", "list_paged", err)
	if err != nil {
		return PageResult[domain.TokenLog]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.Limit)
	return result, nil
}

func (r *GormTokenLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("timestamp < ?", before.UTC()).Delete(&domain.TokenLog{})
	record(ctx, "token_log", "delete_before", res.Error)
	return res.RowsAffected, res.Error
}
