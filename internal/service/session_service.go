package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
)

type SessionView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	IsCurrent bool      `json:"is_current"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository) *SessionService {
	return &SessionService{sessionRepo: sessionRepo, now: time.Now}
}

func (s *SessionService) Create(ctx context.Context, userID string, refresh security.IssuedToken, ip, userAgent string) (*domain.Session, error) {
	session := &domain.Session{
		UserID:       userID,
		RefreshToken: refresh.Token,
		IPAddress:    ip,
		UserAgent:    truncate(userAgent, 255),
		ExpiresAt:    refresh.ExpiresAt.UTC(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, persistence("create session", err)
	}
	return session, nil
}

func (s *SessionService) FindByToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	session, err := s.sessionRepo.FindByToken(ctx, refreshToken)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, persistence("find session", err)
	}
	return session, nil
}

func (s *SessionService) IsValid(ctx context.Context, refreshToken string) (bool, error) {
	session, err := s.FindByToken(ctx, refreshToken)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.IsValidAt(s.now()), nil
}

func (s *SessionService) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	ok, err := s.sessionRepo.RevokeByToken(ctx, refreshToken)
	if err != nil {
		return false, persistence("revoke session", err)
	}
	return ok, nil
}

func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessionRepo.RevokeByUserID(ctx, userID)
	if err != nil {
		return 0, persistence("revoke user sessions", err)
	}
	return n, nil
}

func (s *SessionService) ListActive(ctx context.Context, userID, currentRefresh string) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, persistence("list sessions", err)
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:        session.ID,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			UserAgent: session.UserAgent,
			IPAddress: session.IPAddress,
			IsCurrent: currentRefresh != "" && session.RefreshToken == currentRefresh,
		})
	}
	return views, nil
}

func (s *SessionService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx, now)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
