package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sandeepkv93/secure-content-auth-service/internal/observability"
)

type SweepStep struct {
	Target  string `json:"target"`
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

type SweepReport struct {
	Skipped bool        `json:"skipped"`
	Steps   []SweepStep `json:"steps"`
}

func (r SweepReport) Total() int64 {
	var n int64
	for _, s := range r.Steps {
		n += s.Deleted
	}
	return n
}

type sweepTarget struct {
	name  string
	sweep func(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deletes expired rows. It is housekeeping only: enforcement never
// depends on a row being gone.
type Sweeper struct {
	targets  []sweepTarget
	lock     SweepLock
	lockTTL  time.Duration
	schedule string
	logger   *slog.Logger
	now      func() time.Time
	cron     *cron.Cron
}

func NewSweeper(
	blacklist *Blacklist,
	registry *TokenRegistry,
	limiter *RateLimiter,
	sessions *SessionService,
	anomalies *AnomalyDetector,
	lock SweepLock,
	schedule string,
	logger *slog.Logger,
) *Sweeper {
	if lock == nil {
		lock = NoopSweepLock{}
	}
	return &Sweeper{
		targets: []sweepTarget{
			{name: "blacklist", sweep: blacklist.SweepExpired},
			{name: "active_tokens", sweep: registry.SweepExpired},
			{name: "token_usage", sweep: limiter.SweepExpired},
			{name: "sessions", sweep: sessions.SweepExpired},
			{name: "token_logs", sweep: anomalies.SweepExpired},
		},
		lock:     lock,
		lockTTL:  5 * time.Minute,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce runs every step in order. A failing step is reported and the
// remaining steps still run.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	release, ok, err := s.lock.Acquire(ctx, s.lockTTL)
	if err != nil {
		return SweepReport{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "sweep skipped, lock held elsewhere")
		return SweepReport{Skipped: true}, nil
	}
	defer release()

	now := s.now().UTC()
	report := SweepReport{Steps: make([]SweepStep, 0, len(s.targets))}
	var errs []error
	for _, t := range s.targets {
		n, err := t.sweep(ctx, now)
		step := SweepStep{Target: t.name, Deleted: n}
		if err != nil {
			step.Error = err.Error()
			errs = append(errs, fmt.Errorf("sweep %s: %w", t.name, err))
			s.logger.ErrorContext(ctx, "sweep step failed", "target", t.name, "error", err)
		} else {
			observability.RecordSweepDeleted(ctx, t.name, n)
		}
		report.Steps = append(report.Steps, step)
	}
	s.logger.InfoContext(ctx, "sweep completed", "deleted", report.Total(), "failed_steps", len(errs))
	counts := make([]any, 0, len(report.Steps))
	for _, step := range report.Steps {
		counts = append(counts, slog.Int64(step.Target, step.Deleted))
	}
	observability.AuditContext(ctx, "retention_sweep",
		"total_deleted", report.Total(),
		"failed_steps", len(errs),
		slog.Group("deleted", counts...),
	)
	return report, errors.Join(errs...)
}

func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	if _, err := c.AddFunc(s.schedule, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("sweep scheduler started", "schedule", s.schedule)
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug("cron: "+msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "error", err)...)
}
