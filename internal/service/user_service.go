package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/sanitize"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
)

type ProfileInput struct {
	Email    string
	FullName string
	Gender   domain.Gender
}

type PasswordChangeInput struct {
	OldPassword          string
	NewPassword          string
	PasswordConfirmation string
}

type TokenView struct {
	ID        uint      `json:"id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"`
}

type UserService struct {
	users     repository.UserRepository
	hasher    *security.PasswordHasher
	sessions  *SessionService
	registry  *TokenRegistry
	blacklist *Blacklist
	revoker   *CredentialRevoker
	publisher events.Publisher
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	hasher *security.PasswordHasher,
	sessions *SessionService,
	registry *TokenRegistry,
	blacklist *Blacklist,
	revoker *CredentialRevoker,
	publisher events.Publisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		registry:  registry,
		blacklist: blacklist,
		revoker:   revoker,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *UserService) UpdateProfile(ctx context.Context, user *domain.User, in ProfileInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != user.Email {
		existing, err := s.users.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != user.ID:
			return nil, ErrDuplicateEmail
		case err != nil && !errors.Is(err, repository.ErrUserNotFound):
			return nil, persistence("find user by email", err)
		}
	}
	updated := *user
	updated.Email = email
	updated.FullName = sanitize.Text(in.FullName)
	updated.Gender = in.Gender
	if err := s.users.UpdateProfile(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, persistence("update profile", err)
	}
	return &updated, nil
}

func (s *UserService) ChangePassword(ctx context.Context, user *domain.User, in PasswordChangeInput) error {
	if !s.hasher.Verify(in.OldPassword, user.PasswordHash) {
		return ErrIncorrectPassword
	}
	if in.NewPassword != in.PasswordConfirmation {
		return ErrPasswordMismatch
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	return persistence("update password", s.users.UpdatePassword(ctx, user.ID, hash))
}

// Deactivate blocks the caller's own account and revokes every credential it holds.
func (s *UserService) Deactivate(ctx context.Context, user *domain.User, bearer string) (RevocationReport, error) {
	if err := s.users.SetActive(ctx, user.ID, false); err != nil {
		return RevocationReport{}, persistence("deactivate user", err)
	}
	report, err := s.revoker.RevokeAll(ctx, user.ID)
	if err != nil {
		return report, err
	}
	if bearer != "" {
		err = s.blacklist.Add(ctx, bearer)
	}
	return report, err
}

func (s *UserService) ListSessions(ctx context.Context, user *domain.User, currentRefresh string) ([]SessionView, error) {
	return s.sessions.ListActive(ctx, user.ID, currentRefresh)
}

func (s *UserService) ListTokens(ctx context.Context, user *domain.User, currentBearer string) ([]TokenView, error) {
	tokens, err := s.registry.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	views := make([]TokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, TokenView{
			ID:        t.ID,
			Token:     MaskToken(t.AccessToken),
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
			IsCurrent: t.AccessToken == currentBearer,
		})
	}
	return views, nil
}

// RevokeToken deregisters and blacklists one of the user's access tokens.
// Absence is ErrTokenNotFound; any other failure is reported as ErrBadRequest.
func (s *UserService) RevokeToken(ctx context.Context, user *domain.User, id uint) error {
	t, err := s.registry.FindForUser(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return err
		}
		return errors.Join(ErrBadRequest, err)
	}
	if err := s.blacklist.Add(ctx, t.AccessToken); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	ok, err := s.registry.RevokeOne(ctx, t.AccessToken)
	if err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	if !ok {
		return ErrTokenNotFound
	}
	return nil
}

func (s *UserService) List(ctx context.Context, query repository.UserListQuery) (repository.PageResult[domain.User], error) {
	page, err := s.users.ListPaged(ctx, query)
	if err != nil {
		return repository.PageResult[domain.User]{}, persistence("list users", err)
	}
	return page, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("find user", err)
	}
	return user, nil
}

// Block deactivates the user and revokes everything it holds so a blocked
// account loses access immediately rather than at token expiry.
func (s *UserService) Block(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAlreadyBlocked
	}
	if err := s.users.SetActive(ctx, id, false); err != nil {
		return nil, persistence("block user", err)
	}
	user.IsActive = false
	if _, err := s.revoker.RevokeAll(ctx, id); err != nil {
		return nil, err
	}
	observability.RecordAdminUserMutation(ctx, "block")
	events.Emit(ctx, s.publisher, s.logger, events.Event{Type: events.TypeUserBlocked, UserID: user.ID, Username: user.Username})
	return user, nil
}

func (s *UserService) Unblock(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return nil, ErrAlreadyActive
	}
	if err := s.users.SetActive(ctx, id, true); err != nil {
		return nil, persistence("unblock user", err)
	}
	user.IsActive = true
	observability.RecordAdminUserMutation(ctx, "unblock")
	return user, nil
}

// Delete blacklists the user's registered tokens first, since the cascade
// removes the registry rows that list them.
func (s *UserService) Delete(ctx context.Context, id string) (*domain.User, repository.CascadeResult, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, repository.CascadeResult{}, err
	}
	tokens, err := s.registry.ListForUser(ctx, id)
	if err != nil {
		return nil, repository.CascadeResult{}, err
	}
	for _, t := range tokens {
		if err := s.blacklist.Add(ctx, t.AccessToken); err != nil {
			return nil, repository.CascadeResult{}, err
		}
	}
	res, err := s.users.DeleteCascade(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, repository.CascadeResult{}, ErrUserNotFound
	}
	if err != nil {
		return nil, repository.CascadeResult{}, persistence("delete user", err)
	}
	observability.RecordAdminUserMutation(ctx, "delete")
	events.Emit(ctx, s.publisher, s.logger, events.Event{Type: events.TypeUserDeleted, UserID: user.ID, Username: user.Username})
	return user, res, nil
}

// CreateAdmin provisions an active admin account; used by the operator CLI.
func (s *UserService) CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, persistence("create admin", err)
	}
	return user, nil
}

// FindByUsername is used by the operator CLI to address users by name.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("find user by username", err)
	}
	return user, nil
}

func MaskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + "..." + token[len(token)-6:]
}
