// Package config loads the broker's settings from the environment. The result
// is built once in main and handed to constructors; nothing reads it globally.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends for SESSION_STORE.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr string

	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
	Scopes             []string
	// AuthURL and TokenURL override Google's endpoints when set.
	AuthURL          string
	TokenURL         string
	OAuthHTTPTimeout time.Duration

	AllowedOrigins []string

	CookieName string
	SessionTTL time.Duration

	SessionStore  string
	RedisURL      string
	KeyPrefix     string
	DatabaseURL   string
	SweepInterval time.Duration

	// RateLimitPerMin of 0 disables rate limiting.
	RateLimitPerMin int
	// TrustedProxies lists peer IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed.
	TrustedProxies []string
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", "0.0.0.0:8431"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:        getEnv("OAUTH_REDIRECT_URL", "http://localhost:8431/auth/callback"),
		Scopes:             splitCSV(getEnv("OAUTH_SCOPES", "openid,email,https://www.googleapis.com/auth/drive.file")),
		AuthURL:            os.Getenv("OAUTH_AUTH_URL"),
		TokenURL:           os.Getenv("OAUTH_TOKEN_URL"),
		AllowedOrigins:     splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		CookieName:         getEnv("SESSION_COOKIE_NAME", "session"),
		SessionStore:       strings.ToLower(getEnv("SESSION_STORE", StoreRedis)),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KeyPrefix:          getEnv("SESSION_KEY_PREFIX", "session"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TrustedProxies:     splitCSV(os.Getenv("TRUSTED_PROXIES")),
	}

	var err error
	if cfg.RateLimitPerMin, err = getEnvInt("RATE_LIMIT_PER_MIN", 60); err != nil {
		return nil, err
	}
	if cfg.OAuthHTTPTimeout, err = getEnvDuration("OAUTH_HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", "720h"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SESSION_SWEEP_INTERVAL", "1h"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once rather than the first one found.
func (c *Config) Validate() error {
	var errs []string
	if c.GoogleClientID == "" {
		errs = append(errs, "GOOGLE_CLIENT_ID is required")
	}
	if c.GoogleClientSecret == "" {
		errs = append(errs, "GOOGLE_CLIENT_SECRET is required")
	}
	if c.RedirectURL == "" {
		errs = append(errs, "OAUTH_REDIRECT_URL is required")
	}
	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, "ALLOWED_ORIGINS must list at least one origin")
	}
	if c.CookieName == "" {
		errs = append(errs, "SESSION_COOKIE_NAME must not be empty")
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.OAuthHTTPTimeout <= 0 {
		errs = append(errs, "OAUTH_HTTP_TIMEOUT must be positive")
	}
	if c.RateLimitPerMin < 0 {
		errs = append(errs, "RATE_LIMIT_PER_MIN must be >= 0")
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}
	switch c.SessionStore {
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres store")
		}
		if c.SweepInterval <= 0 {
			errs = append(errs, "SESSION_SWEEP_INTERVAL must be positive")
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("SESSION_STORE %q is not one of redis, postgres, memory", c.SessionStore))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func validProxy(p string) bool {
	if strings.Contains(p, "/") {
		_, err := netip.ParsePrefix(p)
		return err == nil
	}
	_, err := netip.ParseAddr(p)
	return err == nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
