package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/health"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/handler"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/middleware"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
)

type Dependencies struct {
	AuthHandler          *handler.AuthHandler
	UserHandler          *handler.UserHandler
	AdminHandler         *handler.AdminHandler
	Authenticator        middleware.Authenticator
	TokenLimiter         middleware.TokenLimiter
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration
	LoginRateLimitRPM    int
	LoginRateLimiter     LoginRateLimiterFunc
	Publisher            events.Publisher
	Logger               *slog.Logger
	CORSOrigins          []string
	Readiness            *health.ProbeRunner
	EnableOTelHTTP       bool
}

type LoginRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.RequestGate(dep.Authenticator, middleware.DefaultExemptPaths))
	r.Use(middleware.TokenRateLimiter(dep.TokenLimiter, dep.RateLimitMaxRequests, dep.RateLimitPeriod, dep.Publisher, logger))

	loginLimiter := dep.LoginRateLimiter
	if loginLimiter == nil {
		loginLimiter = middleware.NewIPRateLimiter(dep.LoginRateLimitRPM).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, "ok", map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, "ready", map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, "ready", map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(loginLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(loginLimiter).Post("/refresh", dep.AuthHandler.Refresh)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.Post("/logout-all", dep.AuthHandler.LogoutAll)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", dep.UserHandler.Me)
			r.Put("/", dep.UserHandler.UpdateMe)
			r.Delete("/", dep.UserHandler.DeleteMe)
			r.Patch("/change-password", dep.UserHandler.ChangePassword)
			r.Get("/sessions", dep.UserHandler.Sessions)
			r.Get("/tokens", dep.UserHandler.Tokens)
			r.Delete("/tokens/{id}", dep.UserHandler.RevokeToken)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/users", dep.AdminHandler.ListUsers)
			r.Get("/users/{id}", dep.AdminHandler.GetUser)
			r.Patch("/users/{id}/block", dep.AdminHandler.BlockUser)
			r.Patch("/users/{id}/unblock", dep.AdminHandler.UnblockUser)
			r.Delete("/users/{id}", dep.AdminHandler.DeleteUser)
			r.Get("/token-logs", dep.AdminHandler.TokenLogs)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
