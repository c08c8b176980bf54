package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
)

const (
	ActionLogin       = "login"
	ActionRefresh     = "refresh"
	ActionLoginFailed = "login failed"
)

func SuspiciousAction(action string) string { return "suspicious " + action }

// Actor identifies who performed an audited action and from where. UserID is
// empty for attempts against unknown accounts.
type Actor struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
}

type AnomalyDetector struct {
	repo          repository.TokenLogRepository
	loginWindow   time.Duration
	refreshWindow time.Duration
	retention     time.Duration
	publisher     events.Publisher
	logger        *slog.Logger
	now           func() time.Time
}

func NewAnomalyDetector(repo repository.TokenLogRepository, loginWindow, refreshWindow, retention time.Duration, publisher events.Publisher, logger *slog.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		repo:          repo,
		loginWindow:   loginWindow,
		refreshWindow: refreshWindow,
		retention:     retention,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
	}
}

func (d *AnomalyDetector) Record(ctx context.Context, actor Actor, action string) error {
	entry := &domain.TokenLog{
		UserID:    optional(actor.UserID),
		Username:  optional(actor.Username),
		IPAddress: actor.IPAddress,
		UserAgent: truncate(actor.UserAgent, 255),
		Action:    action,
		Timestamp: d.now().UTC(),
	}
	return persistence("record token log", d.repo.Create(ctx, entry))
}

// IsSuspicious compares the current attempt with the user's previous row for
// the same action. Only login and refresh are modelled.
func (d *AnomalyDetector) IsSuspicious(ctx context.Context, userID, ip, userAgent, action string) (bool, error) {
	if action != ActionLogin && action != ActionRefresh {
		return false, nil
	}
	last, err := d.repo.LastByUserAction(ctx, userID, action)
	if err != nil {
		return false, persistence("last token log", err)
	}
	if last == nil {
		return false, nil
	}
	elapsed := d.now().Sub(last.Timestamp)
	switch action {
	case ActionLogin:
		changed := last.IPAddress != ip || last.UserAgent != truncate(userAgent, 255)
		return changed && elapsed < d.loginWindow, nil
	default:
		return elapsed < d.refreshWindow, nil
	}
}

// LogAction evaluates the attempt against history, then appends the action
// row and, when flagged, a "suspicious <action>" row.
func (d *AnomalyDetector) LogAction(ctx context.Context, actor Actor, action string) (bool, error) {
	suspicious, err := d.IsSuspicious(ctx, actor.UserID, actor.IPAddress, actor.UserAgent, action)
	if err != nil {
		return false, err
	}
	if err := d.Record(ctx, actor, action); err != nil {
		return false, err
	}
	if !suspicious {
		return false, nil
	}
	observability.RecordSuspiciousAction(ctx, action)
	events.Emit(ctx, d.publisher, d.logger, events.Event{
		Type:       events.TypeSuspiciousAction,
		UserID:     actor.UserID,
		Username:   actor.Username,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Attributes: map[string]string{"action": action},
	})
	return true, d.Record(ctx, actor, SuspiciousAction(action))
}

// LogActionBestEffort is for the login and refresh paths, where an audit
// failure must never abort authentication.
func (d *AnomalyDetector) LogActionBestEffort(ctx context.Context, actor Actor, action string) bool {
	suspicious, err := d.LogAction(ctx, actor, action)
	if err != nil {
		d.logger.WarnContext(ctx, "token log write failed", "action", action, "user_id", actor.UserID, "error", err)
	}
	return suspicious
}

func (d *AnomalyDetector) List(ctx context.Context, query repository.TokenLogQuery) (repository.PageResult[domain.TokenLog], error) {
	page, err := d.repo.ListPaged(ctx, query)
	if err != nil {
		return repository.PageResult[domain.TokenLog]{}, persistence("list token logs", err)
	}
	return page, nil
}

// SweepExpired is a no-op when retention is disabled.
func (d *AnomalyDetector) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if d.retention <= 0 {
		return 0, nil
	}
	return d.repo.DeleteBefore(ctx, now.Add(-d.retention))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
