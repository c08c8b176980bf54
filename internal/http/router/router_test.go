package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/secure-content-auth-service/internal/domain"
	"github.com/sandeepkv93/secure-content-auth-service/internal/events"
	"github.com/sandeepkv93/secure-content-auth-service/internal/health"
	"github.com/sandeepkv93/secure-content-auth-service/internal/http/handler"
	"github.com/sandeepkv93/secure-content-auth-service/internal/repository"
	"github.com/sandeepkv93/secure-content-auth-service/internal/security"
	"github.com/sandeepkv93/secure-content-auth-service/internal/service"
)

type unhealthyChecker struct{}

func (unhealthyChecker) Check(ctx context.Context) health.CheckResult {
	return health.CheckResult{Name: "db", Healthy: false, Error: "db down"}
}

type testStack struct {
	db       *gorm.DB
	handler  http.Handler
	users    *service.UserService
	sessions *service.SessionService
}

func newTestStack(t *testing.T, maxRequests int, readiness ...*health.ProbeRunner) *testStack {
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
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewUserRepository(db)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	codec := security.NewTokenCodec("abcdefghijklmnopqrstuvwxyz123456", 15*time.Minute, 24*time.Hour)
	sessions := service.NewSessionService(repository.NewSessionRepository(db))
	registry := service.NewTokenRegistry(repository.NewActiveTokenRepository(db))
	blacklist := service.NewBlacklist(repository.NewBlacklistRepository(db), service.NewInMemoryRevokedTokenCache(), 30*time.Minute, log)
	anomalies := service.NewAnomalyDetector(repository.NewTokenLogRepository(db), 300*time.Second, 86400*time.Second, 0, events.NewNoopPublisher(), log)
	limiter := service.NewRateLimiter(repository.NewTokenUsageRepository(db), registry, blacklist, time.Minute)
	revoker := service.NewCredentialRevoker(sessions, registry, blacklist)
	auth := service.NewAuthService(users, hasher, codec, sessions, registry, blacklist, anomalies, revoker, log)
	userSvc := service.NewUserService(users, hasher, sessions, registry, blacklist, revoker, events.NewNoopPublisher(), log)

	dep := Dependencies{
		AuthHandler:          handler.NewAuthHandler(auth, true),
		UserHandler:          handler.NewUserHandler(userSvc, true),
		AdminHandler:         handler.NewAdminHandler(userSvc, anomalies),
		Authenticator:        auth,
		TokenLimiter:         limiter,
		RateLimitMaxRequests: maxRequests,
		RateLimitPeriod:      10 * time.Second,
		LoginRateLimitRPM:    1000,
		Publisher:            events.NewNoopPublisher(),
		Logger:               log,
		CORSOrigins:          []string{"http://localhost"},
	}
	if len(readiness) > 0 {
		dep.Readiness = readiness[0]
	}
	h := NewRouter(dep)
	return &testStack{db: db, handler: h, users: userSvc, sessions: sessions}
}

func perform(r http.Handler, method, target string, headers map[string]string, cookies []*http.Cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return body
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *testStack) register(t *testing.T, username, password string) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":%q,"full_name":"Test User","gender":"other"}`, username, username, password)
	rr := perform(s.handler, http.MethodPost, "/api/v1/auth/register", nil, nil, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, rr.Code, rr.Body.String())
	}
}

// login posts form credentials from ip and returns the access token and refresh cookie.
func (s *testStack) login(t *testing.T, username, password, ip string) (string, *http.Cookie) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Real-IP", ip)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rr.Code, rr.Body.String())
	}
	data, _ := decode(t, rr)["data"].(map[string]any)
	token, _ := data["access_token"].(string)
	var refresh *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == security.RefreshCookieName {
			refresh = c
		}
	}
	if token == "" || refresh == nil {
		t.Fatalf("expected access token and refresh cookie, got %s", rr.Body.String())
	}
	return token, refresh
}

func TestRouterHealthReadyNilAndUnreadyBranches(t *testing.T) {
	t.Run("nil readiness returns ready", func(t *testing.T) {
		s := newTestStack(t, 10)
		rr := perform(s.handler, http.MethodGet, "/health/ready", nil, nil, "")
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ready"`) {
			t.Fatalf("expected ready, got %d %s", rr.Code, rr.Body.String())
		}
	})
	t.Run("unready checker returns 503", func(t *testing.T) {
		s := newTestStack(t, 10, health.NewProbeRunner(time.Second, 0, unhealthyChecker{}))
		rr := perform(s.handler, http.MethodGet, "/health/ready", nil, nil, "")
		if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "db down") {
			t.Fatalf("expected 503 with check detail, got %d %s", rr.Code, rr.Body.String())
		}
	})
}

func TestScenarioRegisterAndLogin(t *testing.T) {
	s := newTestStack(t, 10)
	s.register(t, "alice", "p@ssw0rd1")
	_, refresh := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")

	if !refresh.HttpOnly || !refresh.Secure || refresh.SameSite != http.SameSiteStrictMode || refresh.MaxAge != int((24*time.Hour).Seconds()) {
		t.Fatalf("unexpected refresh cookie attributes %+v", refresh)
	}
	var session domain.Session
	if err := s.db.Where("refresh_token = ?", refresh.Value).First(&session).Error; err != nil {
		t.Fatalf("expected session row: %v", err)
	}
	if session.Revoked {
		t.Fatal("new session must not be revoked")
	}
}

func TestScenarioLogoutRevokesTokens(t *testing.T) {
	s := newTestStack(t, 10)
	s.register(t, "alice", "p@ssw0rd1")
	token, refresh := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")

	rr := perform(s.handler, http.MethodPost, "/api/v1/auth/logout", bearer(token), []*http.Cookie{refresh}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}

	rr = perform(s.handler, http.MethodGet, "/api/v1/users/me", bearer(token), nil, "")
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["message"] != "Token has been revoked" {
		t.Fatalf("expected revoked token rejected, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/refresh", nil, []*http.Cookie{refresh}, "")
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["message"] != "Refresh token revoked or expired" {
		t.Fatalf("expected revoked session rejected, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestScenarioSuspiciousSecondLogin(t *testing.T) {
	s := newTestStack(t, 10)
	s.register(t, "alice", "p@ssw0rd1")
	s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")
	s.login(t, "alice", "p@ssw0rd1", "2.2.2.2")

	var actions []string
	if err := s.db.Model(&domain.TokenLog{}).Order("id").Pluck("action", &actions).Error; err != nil {
		t.Fatalf("load token logs: %v", err)
	}
	want := "login,login,suspicious login"
	if strings.Join(actions, ",") != want {
		t.Fatalf("token log = %v, want %s", actions, want)
	}
}

func TestScenarioRateLimitBlacklistsToken(t *testing.T) {
	s := newTestStack(t, 10)
	s.register(t, "alice", "p@ssw0rd1")
	token, _ := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")

	for i := 1; i <= 10; i++ {
		rr := perform(s.handler, http.MethodGet, "/api/v1/users/me", bearer(token), nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: %d %s", i, rr.Code, rr.Body.String())
		}
	}
	rr := perform(s.handler, http.MethodGet, "/api/v1/users/me", bearer(token), nil, "")
	if rr.Code != http.StatusTooManyRequests || decode(t, rr)["message"] != "Too many requests, token has been blacklisted." {
		t.Fatalf("expected 429 on request 11, got %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	rr = perform(s.handler, http.MethodGet, "/api/v1/users/me", bearer(token), nil, "")
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["message"] != "Token has been revoked" {
		t.Fatalf("expected revoked on request 12, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestLoginFailures(t *testing.T) {
	s := newTestStack(t, 10)
	s.register(t, "alice", "p@ssw0rd1")

	rr := perform(s.handler, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"nope-nope"}`)
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["message"] != "Invalid credentials" {
		t.Fatalf("expected invalid credentials, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"ghost","password":"nope-nope"}`)
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["message"] != "Invalid credentials" {
		t.Fatalf("unknown user must look identical, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/refresh", nil, nil, "")
	if rr.Code != http.StatusUnauthorized || decode(t, rr)["message"] != "Refresh token missing" {
		t.Fatalf("expected missing refresh cookie, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	s := newTestStack(t, 10)
	rr := perform(s.handler, http.MethodPost, "/api/v1/auth/register", nil, nil, `{"username":"al","email":"bad","password":"short","gender":"x"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rr.Code, rr.Body.String())
	}
	s.register(t, "alice", "p@ssw0rd1")
	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/register", nil, nil, `{"username":"alice","email":"x@example.com","password":"p@ssw0rd1","gender":"other"}`)
	if rr.Code != http.StatusBadRequest || decode(t, rr)["message"] != "Username already exists" {
		t.Fatalf("expected duplicate username, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/register", nil, nil, `{"username":"alice2","email":"alice@example.com","password":"p@ssw0rd1","gender":"other"}`)
	if rr.Code != http.StatusBadRequest || decode(t, rr)["message"] != "Email already exists" {
		t.Fatalf("expected duplicate email, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestLogoutRequiresCookie(t *testing.T) {
	s := newTestStack(t, 10)
	s.register(t, "alice", "p@ssw0rd1")
	token, _ := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")

	rr := perform(s.handler, http.MethodPost, "/api/v1/auth/logout", bearer(token), nil, "")
	if rr.Code != http.StatusBadRequest || decode(t, rr)["message"] != "Refresh token missing" {
		t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestLogoutAllAndTokenRevocation(t *testing.T) {
	s := newTestStack(t, 100)
	s.register(t, "alice", "p@ssw0rd1")
	first, firstRefresh := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")
	second, _ := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")

	rr := perform(s.handler, http.MethodGet, "/api/v1/users/me/tokens", bearer(second), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list tokens: %d %s", rr.Code, rr.Body.String())
	}
	tokens, _ := decode(t, rr)["data"].([]any)
	if len(tokens) != 2 {
		t.Fatalf("expected two registered tokens, got %v", tokens)
	}
	rr = perform(s.handler, http.MethodDelete, "/api/v1/users/me/tokens/99999", bearer(second), nil, "")
	if rr.Code != http.StatusNotFound || decode(t, rr)["message"] != "Token not found" {
		t.Fatalf("expected 404, got %d %s", rr.Code, rr.Body.String())
	}

	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/logout-all", bearer(second), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logout all: %d %s", rr.Code, rr.Body.String())
	}
	for _, tok := range []string{first, second} {
		rr = perform(s.handler, http.MethodGet, "/api/v1/users/me", bearer(tok), nil, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected token rejected after logout-all, got %d", rr.Code)
		}
	}
	rr = perform(s.handler, http.MethodPost, "/api/v1/auth/refresh", nil, []*http.Cookie{firstRefresh}, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh rejected after logout-all, got %d", rr.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestStack(t, 100)
	s.register(t, "alice", "p@ssw0rd1")
	if _, err := s.users.CreateAdmin(t.Context(), "root", "root@example.com", "r00tpassword"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	userToken, _ := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")
	adminToken, _ := s.login(t, "root", "r00tpassword", "1.1.1.1")

	rr := perform(s.handler, http.MethodGet, "/api/v1/admin/users", bearer(userToken), nil, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}

	rr = perform(s.handler, http.MethodGet, "/api/v1/admin/users?limit=1&name=ali", bearer(adminToken), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list users: %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	items, _ := body["data"].([]any)
	page, _ := body["pagination"].(map[string]any)
	if len(items) != 1 || page["total"] != float64(1) {
		t.Fatalf("unexpected page %v", body)
	}
	alice, _ := items[0].(map[string]any)
	aliceID, _ := alice["id"].(string)

	rr = perform(s.handler, http.MethodGet, "/api/v1/admin/users?limit=500", bearer(adminToken), nil, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected limit validation, got %d", rr.Code)
	}

	rr = perform(s.handler, http.MethodPatch, "/api/v1/admin/users/"+aliceID+"/block", bearer(adminToken), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("block: %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPatch, "/api/v1/admin/users/"+aliceID+"/block", bearer(adminToken), nil, "")
	if rr.Code != http.StatusBadRequest || decode(t, rr)["message"] != "User was already blocked" {
		t.Fatalf("expected already blocked, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodGet, "/api/v1/users/me", bearer(userToken), nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("blocked user's token must be rejected, got %d", rr.Code)
	}

	rr = perform(s.handler, http.MethodDelete, "/api/v1/admin/users/"+aliceID, bearer(adminToken), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodGet, "/api/v1/admin/users/"+aliceID, bearer(adminToken), nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}

	rr = perform(s.handler, http.MethodGet, "/api/v1/admin/token-logs", bearer(adminToken), nil, "")
	if rr.Code != http.StatusOK || decode(t, rr)["pagination"] == nil {
		t.Fatalf("token logs: %d %s", rr.Code, rr.Body.String())
	}
}

func TestChangePasswordStatuses(t *testing.T) {
	s := newTestStack(t, 100)
	s.register(t, "alice", "p@ssw0rd1")
	token, _ := s.login(t, "alice", "p@ssw0rd1", "1.1.1.1")

	rr := perform(s.handler, http.MethodPatch, "/api/v1/users/me/change-password", bearer(token), nil,
		`{"old_password":"wrong-one","new_password":"n3wpassword","password_confirmation":"n3wpassword"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPatch, "/api/v1/users/me/change-password", bearer(token), nil,
		`{"old_password":"p@ssw0rd1","new_password":"n3wpassword","password_confirmation":"different"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rr.Code, rr.Body.String())
	}
	rr = perform(s.handler, http.MethodPatch, "/api/v1/users/me/change-password", bearer(token), nil,
		`{"old_password":"p@ssw0rd1","new_password":"n3wpassword","password_confirmation":"n3wpassword"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
}
