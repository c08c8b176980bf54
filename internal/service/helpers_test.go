package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// newRedisClientForTest returns a client wired to a private miniredis
// instance, closed with the test.
func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{server.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingPublisher struct{ events []events.Event }

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testEnv struct {
	db        *gorm.DB
	clock     *testClock
	users     *repository.GormUserRepository
	sessRepo  *repository.GormSessionRepository
	tokenRepo *repository.GormActiveTokenRepository
	logRepo   *repository.GormTokenLogRepository
	hasher    *security.PasswordHasher
	codec     *security.TokenCodec
	sessions  *SessionService
	registry  *TokenRegistry
	blacklist *Blacklist
	anomalies *AnomalyDetector
	limiter   *RateLimiter
	revoker   *CredentialRevoker
	auth      *AuthService
	userSvc   *UserService
	events    *recordingPublisher
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	return newTestEnvWith(t, db, repository.NewSessionRepository(db))
}

func newTestEnvWith(t *testing.T, db *gorm.DB, sessRepo repository.SessionRepository) *testEnv {
	t.Helper()
	log := discardLogger()
	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	env := &testEnv{
		db:        db,
		clock:     clock,
		users:     repository.NewUserRepository(db),
		tokenRepo: repository.NewActiveTokenRepository(db),
		logRepo:   repository.NewTokenLogRepository(db),
		hasher:    security.NewPasswordHasher(bcrypt.MinCost),
		codec:     security.NewTokenCodec(testSecret, 15*time.Minute, 24*time.Hour).WithClock(clock.Now),
		events:    &recordingPublisher{},
	}
	if gs, ok := sessRepo.(*repository.GormSessionRepository); ok {
		env.sessRepo = gs
	}
	env.sessions = NewSessionService(sessRepo)
	env.sessions.now = clock.Now
	env.registry = NewTokenRegistry(env.tokenRepo)
	env.blacklist = NewBlacklist(repository.NewBlacklistRepository(db), NewInMemoryRevokedTokenCache(), 30*time.Minute, log)
	env.blacklist.now = clock.Now
	env.anomalies = NewAnomalyDetector(env.logRepo, 300*time.Second, 86400*time.Second, 720*time.Hour, env.events, log)
	env.anomalies.now = clock.Now
	env.limiter = NewRateLimiter(repository.NewTokenUsageRepository(db), env.registry, env.blacklist, time.Minute)
	env.limiter.now = clock.Now
	env.revoker = NewCredentialRevoker(env.sessions, env.registry, env.blacklist)
	env.auth = NewAuthService(env.users, env.hasher, env.codec, env.sessions, env.registry, env.blacklist, env.anomalies, env.revoker, log)
	env.userSvc = NewUserService(env.users, env.hasher, env.sessions, env.registry, env.blacklist, env.revoker, env.events, log)
	return env
}

func (e *testEnv) register(t *testing.T, username, password string) *domain.User {
	t.Helper()
	u, err := e.auth.Register(t.Context(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		FullName: "Test " + username,
		Gender:   domain.GenderOther,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func (e *testEnv) login(t *testing.T, username, password, ip string) *LoginResult {
	t.Helper()
	res, err := e.auth.Login(t.Context(), username, password, ClientInfo{IPAddress: ip, UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return res
}

func (e *testEnv) actions(t *testing.T, userID string) []string {
	t.Helper()
	var logs []domain.TokenLog
	if err := e.db.Where("user_id = ?", userID).Order("id").Find(&logs).Error; err != nil {
		t.Fatalf("load token logs: %v", err)
	}
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}
