package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/sanitize"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
)

type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Gender   domain.Gender
}

// LoginResult is returned by Login and Refresh. RefreshToken is only set by
// Login; refresh does not rotate the session.
type LoginResult struct {
	AccessToken      string
	AccessExpiresIn  time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
	User             *domain.User
	Suspicious       bool
}

type AuthService struct {
	users     repository.UserRepository
	hasher    *security.PasswordHasher
	codec     *security.TokenCodec
	sessions  *SessionService
	registry  *TokenRegistry
	blacklist *Blacklist
	anomalies *AnomalyDetector
	revoker   *CredentialRevoker
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	hasher *security.PasswordHasher,
	codec *security.TokenCodec,
	sessions *SessionService,
	registry *TokenRegistry,
	blacklist *Blacklist,
	anomalies *AnomalyDetector,
	revoker *CredentialRevoker,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		codec:     codec,
		sessions:  sessions,
		registry:  registry,
		blacklist: blacklist,
		anomalies: anomalies,
		revoker:   revoker,
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.ensureAvailable(ctx, in.Username, email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		FullName:     sanitize.Text(in.FullName),
		Gender:       in.Gender,
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost a race with a concurrent registration; report which field.
			if dupErr := s.ensureAvailable(ctx, in.Username, email); dupErr != nil {
				return nil, dupErr
			}
			return nil, ErrDuplicateUsername
		}
		return nil, persistence("create user", err)
	}
	return user, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return persistence("find user by username", err)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return persistence("find user by email", err)
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string, client ClientInfo) (*LoginResult, error) {
	res, err := s.login(ctx, username, password, client)
	status := "success"
	if err != nil {
		status = loginStatus(err)
	}
	observability.RecordAuthLogin(ctx, status)
	return res, err
}

func (s *AuthService) login(ctx context.Context, username, password string, client ClientInfo) (*LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.hasher.VerifyDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, persistence("find user by username", err)
	}
	actor := Actor{UserID: user.ID, Username: user.Username, IPAddress: client.IPAddress, UserAgent: client.UserAgent}
	if !s.hasher.Verify(password, user.PasswordHash) {
		if err := s.anomalies.Record(ctx, actor, ActionLoginFailed); err != nil {
			s.logger.WarnContext(ctx, "token log write failed", "action", ActionLoginFailed, "error", err)
		}
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserBlocked
	}

	access, err := s.codec.IssueAccess(user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	if err := s.registry.Register(ctx, user.ID, access); err != nil {
		s.logger.ErrorContext(ctx, "access token registration failed", "user_id", user.ID, "error", err)
		return nil, ErrSessionCreation
	}
	refresh, err := s.codec.IssueRefresh(user.Username, string(user.Role))
	if err != nil {
		s.discardAccessToken(ctx, access.Token)
		return nil, err
	}
	// A token without a revocable session must not stay usable.
	if _, err := s.sessions.Create(ctx, user.ID, refresh, client.IPAddress, client.UserAgent); err != nil {
		s.logger.ErrorContext(ctx, "session creation failed", "user_id", user.ID, "error", err)
		s.discardAccessToken(ctx, access.Token)
		return nil, ErrSessionCreation
	}

	suspicious := s.anomalies.LogActionBestEffort(ctx, actor, ActionLogin)
	return &LoginResult{
		AccessToken:      access.Token,
		AccessExpiresIn:  s.codec.AccessTTL(),
		RefreshToken:     refresh.Token,
		RefreshExpiresIn: s.codec.RefreshTTL(),
		User:             user,
		Suspicious:       suspicious,
	}, nil
}

func (s *AuthService) discardAccessToken(ctx context.Context, token string) {
	if err := s.blacklist.Add(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "blacklisting orphaned access token failed", "error", err)
	}
	if _, err := s.registry.RevokeOne(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "deregistering orphaned access token failed", "error", err)
	}
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	res, err := s.refresh(ctx, refreshToken, client)
	status := "success"
	if err != nil {
		status = refreshStatus(err)
	}
	observability.RecordAuthRefresh(ctx, status)
	return res, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, ErrRefreshTokenMissing
	}
	claims, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("find user by username", err)
	}
	if !user.IsActive {
		return nil, ErrUserBlocked
	}
	session, err := s.sessions.FindByToken(ctx, refreshToken)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrSessionRevokedOrExpired
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID || !session.IsValidAt(s.sessions.now()) {
		return nil, ErrSessionRevokedOrExpired
	}

	access, err := s.codec.IssueAccess(user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	if err := s.registry.Register(ctx, user.ID, access); err != nil {
		return nil, err
	}
	actor := Actor{UserID: user.ID, Username: user.Username, IPAddress: client.IPAddress, UserAgent: client.UserAgent}
	suspicious := s.anomalies.LogActionBestEffort(ctx, actor, ActionRefresh)
	return &LoginResult{
		AccessToken:     access.Token,
		AccessExpiresIn: s.codec.AccessTTL(),
		User:            user,
		Suspicious:      suspicious,
	}, nil
}

// Logout revokes the session behind refreshToken. A bearer token, when
// present, is blacklisted and deregistered before the session is looked up.
func (s *AuthService) Logout(ctx context.Context, refreshToken, bearer string) error {
	err := s.logout(ctx, refreshToken, bearer)
	observability.RecordAuthLogout(ctx, "single", outcomeStatus(err))
	return err
}

func (s *AuthService) logout(ctx context.Context, refreshToken, bearer string) error {
	if refreshToken == "" {
		return ErrRefreshTokenMissing
	}
	if bearer != "" {
		if err := s.blacklist.Add(ctx, bearer); err != nil {
			return err
		}
		if _, err := s.registry.RevokeOne(ctx, bearer); err != nil {
			return err
		}
	}
	found, err := s.sessions.Revoke(ctx, refreshToken)
	if err != nil {
		return err
	}
	if !found {
		return ErrSessionNotFound
	}
	return nil
}

// LogoutAll revokes every credential of the user, including the bearer token
// carried by the current request even if it was never registered.
func (s *AuthService) LogoutAll(ctx context.Context, userID, bearer string) (RevocationReport, error) {
	report, err := s.revoker.RevokeAll(ctx, userID)
	if err == nil && bearer != "" {
		err = s.blacklist.Add(ctx, bearer)
	}
	observability.RecordAuthLogout(ctx, "all", outcomeStatus(err))
	return report, err
}

// Authenticate resolves a bearer access token to an active user. Revocation
// is checked before the signature.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*domain.User, *security.Claims, error) {
	revoked, err := s.blacklist.Contains(ctx, raw)
	if err != nil {
		observability.RecordAccessTokenValidation(ctx, "error")
		return nil, nil, err
	}
	if revoked {
		observability.RecordAccessTokenValidation(ctx, "revoked")
		return nil, nil, ErrTokenRevoked
	}
	claims, err := s.codec.DecodeAccess(raw)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			observability.RecordAccessTokenValidation(ctx, "expired")
		} else {
			observability.RecordAccessTokenValidation(ctx, "invalid")
		}
		return nil, nil, err
	}
	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, repository.ErrUserNotFound) {
		observability.RecordAccessTokenValidation(ctx, "user_not_found")
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		observability.RecordAccessTokenValidation(ctx, "error")
		return nil, nil, persistence("find user by username", err)
	}
	if !user.IsActive {
		observability.RecordAccessTokenValidation(ctx, "user_blocked")
		return nil, nil, ErrUserBlocked
	}
	observability.RecordAccessTokenValidation(ctx, "success")
	return user, claims, nil
}

func loginStatus(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserBlocked):
		return "blocked"
	case errors.Is(err, ErrSessionCreation):
		return "session_failed"
	default:
		return "error"
	}
}

func refreshStatus(err error) string {
	switch {
	case errors.Is(err, ErrRefreshTokenMissing):
		return "missing"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "invalid"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrUserBlocked):
		return "user_rejected"
	case errors.Is(err, ErrSessionRevokedOrExpired):
		return "session_rejected"
	default:
		return "error"
	}
}

func outcomeStatus(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
