package observability

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}

// AuditContext is used where no request is at hand, e.g. background sweeps.
func AuditContext(ctx context.Context, event string, attrs ...any) {
	base := append([]any{"event", event}, attrs...)
	slog.InfoContext(ctx, "audit", base...)
}
