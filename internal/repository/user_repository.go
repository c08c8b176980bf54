package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
)

type UserListQuery struct {
	PageRequest
	Name     string
	IsActive *bool
	Role     string
}

// CascadeResult counts what DeleteCascade removed alongside the user.
type CascadeResult struct {
	Posts        int64 `json:"posts"`
	Sessions     int64 `json:"sessions"`
	AccessTokens int64 `json:"access_tokens"`
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error
	ListPaged(ctx context.Context, query UserListQuery) (PageResult[domain.User], error)
	DeleteCascade(ctx context.Context, id string) (CascadeResult, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) *GormUserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "find_by_id", "id = ?", id)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "find_by_username", "username = ?", username)
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "find_by_email", "email = ?", strings.ToLower(email))
}

func (r *GormUserRepository) findOne(ctx context.Context, op, cond string, arg any) (*domain.User, error) {
	var u domain.User
	err := translate(r.db.WithContext(ctx).Where(cond, arg).Take(&u).Error, ErrUserNotFound)
	record(ctx, "user", op, err)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	err := translate(r.db.WithContext(ctx).Create(user).Error, ErrUserNotFound)
	record(ctx, "user", "create", err)
	return err
}

func (r *GormUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"email":     user.Email,
			"full_name": user.FullName,
			"gender":    user.Gender,
		})
	err := translate(res.Error, ErrUserNotFound)
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	record(ctx, "user", "update_profile", err)
	return err
}

func (r *GormUserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("password", hash)
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	record(ctx, "user", "update_password", err)
	return err
}

func (r *GormUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("is_active", active)
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	record(ctx, "user", "set_active", err)
	return err
}

func (r *GormUserRepository) ListPaged(ctx context.Context, query UserListQuery) (PageResult[domain.User], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.User]{
		Page:  req.Page,
		Limit: req.Limit,
		Items: []domain.User{},
	}

	base := r.db.WithContext(ctx).Model(&domain.User{})
	if query.Name != "" {
		like := "%" + strings.ToLower(query.Name) + "%"
		base = base.Where("LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	if query.IsActive != nil {
		base = base.Where("is_active = ?", *query.IsActive)
	}
	if query.Role != "" {
		base = base.Where("role = ?", query.Role)
	}

	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		record(ctx, "user", "list_paged", err)
		return PageResult[domain.User]{}, err
	}
	err := base.Order("created_at DESC").Order("id").
		Offset(req.offset()).Limit(req.Limit).
		Find(&result.Items).Error
	record(ctx, "user", "list_paged", err)
	if err != nil {
		return PageResult[domain.User]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.Limit)
	return result, nil
}

// DeleteCascade removes the user and everything it owns in one transaction
// instead of relying on engine-level ON DELETE CASCADE.
func (r *GormUserRepository) DeleteCascade(ctx context.Context, id string) (CascadeResult, error) {
	var out CascadeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			return translate(err, ErrUserNotFound)
		}
		postIDs := tx.Model(&domain.Post{}).Select("id").Where("user_id = ?", id)
		if err := tx.Exec("DELETE FROM post_categories WHERE post_id IN (?)", postIDs).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", id).Delete(&domain.Post{})
		if res.Error != nil {
			return res.Error
		}
		out.Posts = res.RowsAffected
		res = tx.Where("user_id = ?", id).Delete(&domain.Session{})
		if res.Error != nil {
			return res.Error
		}
		out.Sessions = res.RowsAffected
		res = tx.Where("user_id = ?", id).Delete(&domain.ActiveAccessToken{})
		if res.Error != nil {
			return res.Error
		}
		out.AccessTokens = res.RowsAffected
		return tx.Delete(&user).Error
	})
	record(ctx, "user", "delete_cascade", err)
	if err != nil {
		return CascadeResult{}, err
	}
	return out, nil
}
