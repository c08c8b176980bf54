package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/response"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

type TokenLimiter interface {
	IsRateLimited(ctx context.Context, token string, maxRequests int, period time.Duration) (service.RateDecision, error)
	Blacklist(ctx context.Context, token string) error
}

// TokenRateLimiter counts requests per bearer token. A token over the limit is
// deregistered and blacklisted, so the 429 is terminal for that token.
// Requests without a bearer token pass through uncounted.
func TokenRateLimiter(limiter TokenLimiter, maxRequests int, period time.Duration, publisher events.Publisher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			decision, err := limiter.IsRateLimited(ctx, token, maxRequests, period)
			if err != nil {
				observability.RecordRateLimitDecision(ctx, "token", "backend_error", "fail_closed")
				logger.ErrorContext(ctx, "token rate limiter failed", "error", err)
				response.Error(w, r, http.StatusInternalServerError, "Internal Server Error", nil)
				return
			}
			writeRateLimitHeaders(w.Header(), decision.Limit, decision.Remaining(), decision.ResetAt)
			if !decision.Limited {
				observability.RecordRateLimitDecision(ctx, "token", "allow", "fail_closed")
				next.ServeHTTP(w, r)
				return
			}
			if err := limiter.Blacklist(ctx, token); err != nil {
				logger.ErrorContext(ctx, "blacklisting rate limited token failed", "error", err)
				response.Error(w, r, http.StatusInternalServerError, "Internal Server Error", nil)
				return
			}
			observability.RecordRateLimitDecision(ctx, "token", "deny", "fail_closed")
			ev := events.Event{Type: events.TypeTokenRateLimited, IPAddress: clientIPKey(r), UserAgent: r.UserAgent()}
			if id, ok := IdentityFromContext(ctx); ok {
				ev.UserID, ev.Username = id.User.ID, id.User.Username
			}
			observability.Audit(r, events.TypeTokenRateLimited, "user_id", ev.UserID, "count", decision.Count)
			events.Emit(ctx, publisher, logger, ev)
			w.Header().Set("Retry-After", retryAfterHeader(period))
			response.Error(w, r, http.StatusTooManyRequests, "Too many requests, token has been blacklisted.", nil)
		})
	}
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles unauthenticated endpoints per client IP with a
// token bucket refilled at perMinute.
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	cleanup time.Time
	now     func() time.Time
}

func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &IPRateLimiter{
		entries: make(map[string]*ipEntry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.now()
			lim := l.get(clientIPKey(r), now)
			res := lim.ReserveN(now, 1)
			delay := res.DelayFrom(now)
			if delay == 0 {
				observability.RecordRateLimitDecision(r.Context(), "ip", "allow", "local")
				next.ServeHTTP(w, r)
				return
			}
			res.CancelAt(now)
			observability.RecordRateLimitDecision(r.Context(), "ip", "deny", "local")
			w.Header().Set("Retry-After", retryAfterHeader(delay))
			response.Error(w, r, http.StatusTooManyRequests, "Too many requests, try again later.", nil)
		})
	}
}

func (l *IPRateLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.cleanup) {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.entries, k)
			}
		}
		l.cleanup = now.Add(l.idle)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// clientIPKey relies on chi's RealIP having already rewritten RemoteAddr.
func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", max(limit, 0)))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(remaining, 0)))
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}
