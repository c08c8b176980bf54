package events

import (
	"context"
	"log/slog"
	"time"
)

const (
	TypeSuspiciousAction = "suspicious_action"
	TypeTokenRateLimited = "token_rate_limited"
	TypeUserBlocked      = "user_blocked"
	TypeUserDeleted      = "user_deleted"
)

type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	Username   string            `json:"username,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// Emit publishes ev and only logs a failure. Security events never fail the
// request that produced them.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, ev Event) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil && logger != nil {
		logger.WarnContext(ctx, "security event publish failed", "type", ev.Type, "error", err)
	}
}
