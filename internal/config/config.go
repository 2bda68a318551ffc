// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"statusgate/internal/credential"
	"statusgate/internal/origin"
	"statusgate/internal/proxy"
	"statusgate/internal/ratelimit"
)

var (
	// ErrInvalid wraps every malformed optional setting.
	ErrInvalid = errors.New("invalid configuration")
	// ErrMissingDBURL is returned by LoadWorker when DB_URL is not set.
	ErrMissingDBURL = errors.New("DB_URL environment variable is required")
)

// DefaultRedisAddr is the worker's queue address when REDIS_ADDR is unset.
const DefaultRedisAddr = "localhost:6379"

type Config struct {
	Server    ServerConfig
	Gate      GateConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

type ServerConfig struct {
	Port           string
	ServiceName    string
	ServiceVersion string
	StaticDir      string
	MaxConnections int
	MetricsAddr    string
}

type GateConfig struct {
	Credential     *credential.Store
	AllowedOrigins string
	StrictOrigin   bool
	TrustProxyHops int
}

type RateLimitConfig struct {
	Max           int
	Window        time.Duration
	SweepInterval time.Duration
}

type AuditConfig struct {
	RedisAddr string
	DBURL     string
}

// LoadDotEnv loads an optional .env file into the process environment.
// Variables already set are left alone.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads the API server configuration through getenv. A missing
// credential returns credential.ErrMissing; malformed optional values return
// an error wrapping ErrInvalid.
func Load(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := lookup(getenv)

	cred, err := credential.Load(getenv)
	if err != nil {
		return Config{}, err
	}

	maxConns, err := env.getInt("MAX_CONNECTIONS", 0)
	if err != nil {
		return Config{}, err
	}
	strict, err := env.getBool("STRICT_ORIGIN", false)
	if err != nil {
		return Config{}, err
	}
	hops, err := env.getInt("TRUST_PROXY_HOPS", proxy.DefaultHops)
	if err != nil {
		return Config{}, err
	}
	if hops < 0 {
		return Config{}, fmt.Errorf("%w: TRUST_PROXY_HOPS must not be negative", ErrInvalid)
	}

	rl, err := buildRateLimitConfig(env)
	if err != nil {
		return Config{}, err
	}

	port := env.getEnv("PORT", "3000")
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return Config{}, fmt.Errorf("%w: PORT %q", ErrInvalid, port)
	}

	return Config{
		Server: ServerConfig{
			Port:           port,
			ServiceName:    env.getEnv("SERVICE_NAME", "MCP Dashboard"),
			ServiceVersion: env.getEnv("SERVICE_VERSION", "1.0.0"),
			StaticDir:      env.getEnv("STATIC_DIR", "./public"),
			MaxConnections: maxConns,
			MetricsAddr:    env.getEnv("METRICS_ADDR", ""),
		},
		Gate: GateConfig{
			Credential:     cred,
			AllowedOrigins: env.getEnv("ALLOWED_ORIGINS", origin.DefaultOrigin),
			StrictOrigin:   strict,
			TrustProxyHops: hops,
		},
		RateLimit: rl,
		Audit: AuditConfig{
			RedisAddr: env.getEnv("REDIS_ADDR", ""),
		},
	}, nil
}

// LoadWorker reads the audit worker configuration. Unlike the API server the
// worker always needs Redis, so REDIS_ADDR has a default, and DB_URL is
// required.
func LoadWorker(getenv func(string) string) (AuditConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := lookup(getenv)

	dbURL := env.getEnv("DB_URL", "")
	if dbURL == "" {
		return AuditConfig{}, ErrMissingDBURL
	}
	return AuditConfig{
		RedisAddr: env.getEnv("REDIS_ADDR", DefaultRedisAddr),
		DBURL:     dbURL,
	}, nil
}

func buildRateLimitConfig(env lookup) (RateLimitConfig, error) {
	limit, err := env.getInt("RATE_LIMIT_MAX", ratelimit.DefaultLimit)
	if err != nil {
		return RateLimitConfig{}, err
	}
	if limit <= 0 {
		return RateLimitConfig{}, fmt.Errorf("%w: RATE_LIMIT_MAX must be positive", ErrInvalid)
	}
	window, err := env.getDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow)
	if err != nil {
		return RateLimitConfig{}, err
	}
	sweep, err := env.getDuration("RATE_LIMIT_SWEEP", time.Minute)
	if err != nil {
		return RateLimitConfig{}, err
	}
	return RateLimitConfig{Max: limit, Window: window, SweepInterval: sweep}, nil
}

type lookup func(string) string

func (l lookup) getEnv(key, fallback string) string {
	value := strings.TrimSpace(l(key))
	if value == "" {
		return fallback
	}
	return value
}

func (l lookup) getInt(key string, fallback int) (int, error) {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return n, nil
}

func (l lookup) getBool(key string, fallback bool) (bool, error) {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return b, nil
}

func (l lookup) getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := l.getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
	}
	return d, nil
}
