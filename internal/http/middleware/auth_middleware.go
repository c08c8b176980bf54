package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// DefaultExemptPaths bypass the request gate entirely.
var DefaultExemptPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/register",
	"/api/v1/auth/refresh",
	"/health/live",
	"/health/ready",
}

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.User, *security.Claims, error)
}

// Identity is what the gate attaches to an admitted request.
type Identity struct {
	User   *domain.User
	Claims *security.Claims
	Token  string
}

// RequestGate admits a request only when it carries a non-revoked, valid
// bearer access token whose subject is an active user.
func RequestGate(auth Authenticator, exempt []string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			raw := BearerToken(r)
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "Missing or invalid Authorization header", nil)
				return
			}
			user, claims, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				status, msg := gateRejection(err)
				if status == http.StatusInternalServerError {
					slog.ErrorContext(r.Context(), "request gate failed", "path", r.URL.Path, "error", err)
				}
				response.Error(w, r, status, msg, nil)
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey, &Identity{User: user, Claims: claims, Token: raw})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func gateRejection(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "Token has been revoked"
	case errors.Is(err, security.ErrExpiredToken):
		return http.StatusUnauthorized, "Access token expired"
	case errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrUserBlocked):
		return http.StatusUnauthorized, "User blocked or not found"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header,
// or "" when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

// WithIdentity is used by tests and by handlers mounted without the gate.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
