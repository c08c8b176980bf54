package middleware

import (
	"net/http"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
)

// RequireRole must be mounted behind RequestGate.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "Missing or invalid Authorization header", nil)
				return
			}
			for _, role := range roles {
				if id.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, r, http.StatusForbidden, "Forbidden", nil)
		})
	}
}
