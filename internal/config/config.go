package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	SecretKey       string
	JWTAlgorithm    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	BlacklistRetention     time.Duration
	TokenUsageLogRetention time.Duration
	TokenLogRetention      time.Duration

	RateLimitMaxRequests    int
	RateLimitPeriod         time.Duration
	LoginRateLimitPerMinute int

	SuspiciousLoginWindow   time.Duration
	SuspiciousRefreshWindow time.Duration

	SweepSchedule string

	CookieSecure       bool
	CORSAllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL             string
	SecurityEventsQueue string

	LogLevel  string
	LogFormat string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration

	ReadHeaderTimeout            time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == EnvDevelopment }

// Load builds the configuration from defaults, an optional YAML file
// (CONFIG_FILE), an optional dotenv file (ENV_FILE, default .env) and the
// process environment, in increasing order of precedence.
func Load() (*Config, error) {
	cfg, err := load()
	profile := os.Getenv("APP_ENV")
	if cfg != nil {
		profile = cfg.AppEnv
	}
	if err != nil {
		recordConfigValidationEvent(context.Background(), profile, "error", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), profile, "success", "none")
	return cfg, nil
}

func load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	src := source{file: map[string]string{}}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readYAMLFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{
		AppEnv:              strings.ToLower(src.str("APP_ENV", EnvProduction)),
		HTTPAddr:            src.str("HTTP_ADDR", ":8080"),
		DatabaseDriver:      strings.ToLower(src.str("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:         src.str("DATABASE_URL", ""),
		SecretKey:           src.str("SECRET_KEY", ""),
		JWTAlgorithm:        strings.ToUpper(src.str("JWT_ALGORITHM", "HS256")),
		SweepSchedule:       src.str("SWEEP_SCHEDULE", "@every 10m"),
		CORSAllowedOrigins:  src.list("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RedisAddr:           src.str("REDIS_ADDR", ""),
		RedisPassword:       src.str("REDIS_PASSWORD", ""),
		AMQPURL:             src.str("AMQP_URL", ""),
		SecurityEventsQueue: src.str("SECURITY_EVENTS_QUEUE", "auth.security.events"),
		LogLevel:            strings.ToLower(src.str("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(src.str("LOG_FORMAT", "json")),

		OTELServiceName:          src.str("OTEL_SERVICE_NAME", "secure-content-auth-service"),
		OTELExporterOTLPEndpoint: src.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
	cfg.OTELEnvironment = src.str("OTEL_ENVIRONMENT", cfg.AppEnv)

	p := parser{src: src}
	cfg.AccessTokenTTL = p.duration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = p.duration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	cfg.BcryptCost = p.integer("BCRYPT_COST", 12)
	cfg.BlacklistRetention = p.duration("BLACKLIST_RETENTION", 30*time.Minute)
	cfg.TokenUsageLogRetention = p.duration("TOKEN_USAGE_LOG_RETENTION", time.Minute)
	cfg.TokenLogRetention = p.duration("TOKEN_LOG_RETENTION", 30*24*time.Hour)
	cfg.RateLimitMaxRequests = p.integer("RATE_LIMIT_MAX_REQUESTS", 10)
	cfg.RateLimitPeriod = p.duration("RATE_LIMIT_PERIOD", 10*time.Second)
	cfg.LoginRateLimitPerMinute = p.integer("LOGIN_RATE_LIMIT_PER_MINUTE", 60)
	cfg.SuspiciousLoginWindow = p.duration("SUSPICIOUS_LOGIN_WINDOW", 300*time.Second)
	cfg.SuspiciousRefreshWindow = p.duration("SUSPICIOUS_REFRESH_WINDOW", 86400*time.Second)
	cfg.CookieSecure = p.boolean("COOKIE_SECURE", true)
	cfg.RedisDB = p.integer("REDIS_DB", 0)
	cfg.OTELExporterOTLPInsecure = p.boolean("OTEL_EXPORTER_OTLP_INSECURE", true)
	cfg.OTELMetricsEnabled = p.boolean("OTEL_METRICS_ENABLED", false)
	cfg.OTELTracingEnabled = p.boolean("OTEL_TRACING_ENABLED", false)
	cfg.OTELLogsEnabled = p.boolean("OTEL_LOGS_ENABLED", false)
	cfg.OTELMetricsExportInterval = p.duration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second)
	cfg.ReadHeaderTimeout = p.duration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	cfg.ShutdownTimeout = p.duration("SHUTDOWN_TIMEOUT", 20*time.Second)
	cfg.ShutdownHTTPDrainTimeout = p.duration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second)
	cfg.ShutdownObservabilityTimeout = p.duration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second)
	if p.err != nil {
		return cfg, p.err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	switch c.AppEnv {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		problems = append(problems, fmt.Sprintf("APP_ENV must be one of development, staging, production (got %q)", c.AppEnv))
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres", "mysql":
	default:
		problems = append(problems, fmt.Sprintf("DATABASE_DRIVER %q is not supported", c.DatabaseDriver))
	}
	if c.SecretKey == "" {
		problems = append(problems, "SECRET_KEY is required")
	} else if !c.IsDevelopment() && len(c.SecretKey) < 32 {
		problems = append(problems, "SECRET_KEY must be at least 32 bytes")
	}
	if c.JWTAlgorithm != "HS256" {
		problems = append(problems, "JWT_ALGORITHM must be HS256")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		problems = append(problems, "token TTLs must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 31")
	}
	if c.RateLimitMaxRequests <= 0 || c.RateLimitPeriod <= 0 {
		problems = append(problems, "rate limit settings must be positive")
	}
	if c.LoginRateLimitPerMinute <= 0 {
		problems = append(problems, "LOGIN_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.SuspiciousLoginWindow <= 0 || c.SuspiciousRefreshWindow <= 0 {
		problems = append(problems, "suspicious windows must be positive")
	}
	if c.BlacklistRetention <= 0 || c.TokenUsageLogRetention <= 0 || c.TokenLogRetention < 0 {
		problems = append(problems, "retention windows must be positive")
	}
	if !c.IsDevelopment() && c.BlacklistRetention < c.AccessTokenTTL {
		problems = append(problems, "BLACKLIST_RETENTION must not be shorter than ACCESS_TOKEN_TTL")
	}
	if c.TokenUsageLogRetention < c.RateLimitPeriod {
		problems = append(problems, "TOKEN_USAGE_LOG_RETENTION must cover RATE_LIMIT_PERIOD")
	}
	if strings.TrimSpace(c.SweepSchedule) == "" {
		problems = append(problems, "SWEEP_SCHEDULE is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v), true
	}
	v, ok := s.file[key]
	return v, ok
}

func (s source) str(key, def string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (s source) list(key string, def []string) []string {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return def
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parser keeps the first parse failure so Load reports one error.
type parser struct {
	src source
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s: %w", key, err)
	}
}

// duration accepts Go duration strings or a bare number of seconds.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.src.lookup(key)
	if !ok || v == "" {
		return def
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.src.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v, ok := p.src.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func readYAMLFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse CONFIG_FILE: %w", err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = strings.TrimSpace(fmt.Sprint(val))
		}
	}
	return out, nil
}
