package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	actionLogin = "login"
	actionMe    = "me"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	Username    string
	Password    string
}

type Result struct {
	TotalRequests int
	Failures      int
	RateLimited   int
	Relogins      int
	StatusClasses map[string]int
}

// Run drives authenticated traffic at the API for cfg.Duration. A token that
// gets rate limited or revoked is replaced by logging in again.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg.Profile = normalizeProfile(cfg.Profile)
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Username == "" {
		return Result{}, errors.New("loadgen: username is required")
	}

	d := &driver{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		res:    Result{StatusClasses: map[string]int{}},
	}
	if cfg.Profile != actionLogin {
		status, err := d.relogin(ctx)
		if err == nil && status != http.StatusOK {
			err = fmt.Errorf("unexpected status %d", status)
		}
		if err != nil {
			return d.res, fmt.Errorf("initial login: %w", err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency)
	g, gctx := errgroup.WithContext(runCtx)
	for w := 0; w < cfg.Concurrency; w++ {
		rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(w)))
		g.Go(func() error {
			for {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				d.step(gctx, pickAction(cfg.Profile, rng))
			}
		})
	}
	_ = g.Wait()
	return d.snapshot(), nil
}

type driver struct {
	cfg    Config
	client *http.Client

	mu    sync.Mutex
	token string
	res   Result
}

func (d *driver) step(ctx context.Context, action string) {
	var (
		status int
		err    error
	)
	switch action {
	case actionLogin:
		status, err = d.relogin(ctx)
	default:
		status, err = d.me(ctx)
	}
	if err != nil && ctx.Err() != nil {
		return
	}
	d.record(status, err)
	if action == actionMe && (status == http.StatusTooManyRequests || status == http.StatusUnauthorized) {
		d.mu.Lock()
		d.res.Relogins++
		d.mu.Unlock()
		if s, err := d.relogin(ctx); ctx.Err() == nil {
			d.record(s, err)
		}
	}
}

func (d *driver) record(status int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.res.TotalRequests++
	if err != nil {
		d.res.Failures++
		d.res.StatusClasses["error"]++
		return
	}
	d.res.StatusClasses[classifyStatusClass(status)]++
	if status == http.StatusTooManyRequests {
		d.res.RateLimited++
	}
	if status >= 500 {
		d.res.Failures++
	}
}

func (d *driver) snapshot() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.res
	out.StatusClasses = make(map[string]int, len(d.res.StatusClasses))
	for k, v := range d.res.StatusClasses {
		out.StatusClasses[k] = v
	}
	return out
}

func (d *driver) relogin(ctx context.Context) (int, error) {
	form := url.Values{"username": {d.cfg.Username}, "password": {d.cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint("/api/v1/auth/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, fmt.Errorf("decode login response: %w", err)
	}
	d.mu.Lock()
	d.token = body.Data.AccessToken
	d.mu.Unlock()
	return resp.StatusCode, nil
}

func (d *driver) me(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint("/api/v1/users/me"), nil)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	token := d.token
	d.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (d *driver) endpoint(path string) string {
	return strings.TrimRight(d.cfg.BaseURL, "/") + path
}

func pickAction(profile string, rng *rand.Rand) string {
	switch profile {
	case actionLogin:
		return actionLogin
	case actionMe:
		return actionMe
	}
	if rng.IntN(10) < 2 {
		return actionLogin
	}
	return actionMe
}

func normalizeProfile(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "login", "auth":
		return actionLogin
	case "me", "read":
		return actionMe
	default:
		return "mixed"
	}
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
