package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/secure-content-auth-service/internal/config"
	"github.com/sandeepkv93/secure-content-auth-service/internal/database"
	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/health"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/handler"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/router"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

const (
	revokedTokenKeyPrefix = "auth:revoked"
	sweepLockKey          = "auth:sweep:lock"
)

var InfraSet = wire.NewSet(
	ProvideDB,
	ProvideRedisClient,
	ProvidePublisher,
)

var RepositorySet = wire.NewSet(
	ProvideUserRepository,
	ProvideSessionRepository,
	ProvideActiveTokenRepository,
	ProvideBlacklistRepository,
	ProvideTokenUsageRepository,
	ProvideTokenLogRepository,
)

var ServiceSet = wire.NewSet(
	ProvidePasswordHasher,
	ProvideTokenCodec,
	ProvideRevokedTokenCache,
	ProvideSweepLock,
	service.NewSessionService,
	service.NewTokenRegistry,
	ProvideBlacklist,
	ProvideAnomalyDetector,
	ProvideRateLimiter,
	service.NewCredentialRevoker,
	service.NewAuthService,
	service.NewUserService,
	ProvideSweeper,
)

var HTTPSet = wire.NewSet(
	ProvideReadiness,
	ProvideRouter,
	ProvideHTTPServer,
)

// ProvideDB opens and migrates the relational store.
func ProvideDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			logger.Error("close database", "error", err)
		}
	}
	return db, cleanup, nil
}

// ProvideRedisClient returns nil when REDIS_ADDR is unset; every consumer
// treats a nil client as "redis disabled".
func ProvideRedisClient(cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("close redis", "error", err)
		}
	}
	return client, cleanup, nil
}

// ProvidePublisher connects to the broker when AMQP_URL is set. A broker that
// cannot be reached degrades to the no-op publisher.
func ProvidePublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NewNoopPublisher()
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.SecurityEventsQueue)
	if err != nil {
		logger.Warn("security event broker unavailable, events disabled", "error", err)
		return events.NewNoopPublisher()
	}
	logger.Info("security events publishing", "queue", cfg.SecurityEventsQueue)
	return p
}

func ProvideUserRepository(db *gorm.DB) repository.UserRepository {
	return repository.NewUserRepository(db)
}

func ProvideSessionRepository(db *gorm.DB) repository.SessionRepository {
	return repository.NewSessionRepository(db)
}

func ProvideActiveTokenRepository(db *gorm.DB) repository.ActiveTokenRepository {
	return repository.NewActiveTokenRepository(db)
}

func ProvideBlacklistRepository(db *gorm.DB) repository.BlacklistRepository {
	return repository.NewBlacklistRepository(db)
}

func ProvideTokenUsageRepository(db *gorm.DB) repository.TokenUsageRepository {
	return repository.NewTokenUsageRepository(db)
}

func ProvideTokenLogRepository(db *gorm.DB) repository.TokenLogRepository {
	return repository.NewTokenLogRepository(db)
}

func ProvidePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

func ProvideTokenCodec(cfg *config.Config) *security.TokenCodec {
	return security.NewTokenCodec(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func ProvideRevokedTokenCache(client redis.UniversalClient) service.RevokedTokenCache {
	if client == nil {
		return service.NewInMemoryRevokedTokenCache()
	}
	return service.NewRedisRevokedTokenCache(client, revokedTokenKeyPrefix)
}

func ProvideSweepLock(client redis.UniversalClient) service.SweepLock {
	if client == nil {
		return service.NoopSweepLock{}
	}
	return service.NewRedisSweepLock(client, sweepLockKey)
}

func ProvideBlacklist(repo repository.BlacklistRepository, cache service.RevokedTokenCache, cfg *config.Config, logger *slog.Logger) *service.Blacklist {
	return service.NewBlacklist(repo, cache, cfg.BlacklistRetention, logger)
}

func ProvideAnomalyDetector(repo repository.TokenLogRepository, cfg *config.Config, publisher events.Publisher, logger *slog.Logger) *service.AnomalyDetector {
	return service.NewAnomalyDetector(repo, cfg.SuspiciousLoginWindow, cfg.SuspiciousRefreshWindow, cfg.TokenLogRetention, publisher, logger)
}

func ProvideRateLimiter(usage repository.TokenUsageRepository, registry *service.TokenRegistry, blacklist *service.Blacklist, cfg *config.Config) *service.RateLimiter {
	return service.NewRateLimiter(usage, registry, blacklist, cfg.TokenUsageLogRetention)
}

func ProvideSweeper(
	blacklist *service.Blacklist,
	registry *service.TokenRegistry,
	limiter *service.RateLimiter,
	sessions *service.SessionService,
	anomalies *service.AnomalyDetector,
	lock service.SweepLock,
	cfg *config.Config,
	logger *slog.Logger,
) *service.Sweeper {
	return service.NewSweeper(blacklist, registry, limiter, sessions, anomalies, lock, cfg.SweepSchedule, logger)
}

func ProvideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.RedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, time.Second, checkers...)
}

func ProvideRouter(
	cfg *config.Config,
	auth *service.AuthService,
	users *service.UserService,
	anomalies *service.AnomalyDetector,
	limiter *service.RateLimiter,
	publisher events.Publisher,
	readiness *health.ProbeRunner,
	logger *slog.Logger,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:          handler.NewAuthHandler(auth, cfg.CookieSecure),
		UserHandler:          handler.NewUserHandler(users, cfg.CookieSecure),
		AdminHandler:         handler.NewAdminHandler(users, anomalies),
		Authenticator:        auth,
		TokenLimiter:         limiter,
		RateLimitMaxRequests: cfg.RateLimitMaxRequests,
		RateLimitPeriod:      cfg.RateLimitPeriod,
		LoginRateLimitRPM:    cfg.LoginRateLimitPerMinute,
		Publisher:            publisher,
		Logger:               logger,
		CORSOrigins:          cfg.CORSAllowedOrigins,
		Readiness:            readiness,
		EnableOTelHTTP:       cfg.OTELTracingEnabled,
	})
}

func ProvideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Toolkit is the slice of the graph the operator CLIs need.
type Toolkit struct {
	DB        *gorm.DB
	Users     *service.UserService
	Sweeper   *service.Sweeper
	Publisher events.Publisher
}

func (t *Toolkit) Close() error {
	if t.Publisher == nil {
		return nil
	}
	return t.Publisher.Close()
}
