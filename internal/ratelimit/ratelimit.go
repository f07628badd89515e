// Package ratelimit provides fixed-window rate limiting backed by the
// cache subsystem's counters.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/prepshare/prepshare-go/internal/cache"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Config defines rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	RequestsPerWindow int64

	// Burst is the extra allowance above RequestsPerWindow within a window.
	Burst int64

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyPrefix is prepended to all rate limit keys.
	KeyPrefix string
}

// DefaultConfig returns sensible rate limiting defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 100,
		Window:            cache.TTLRateLimit,
		KeyPrefix:         "ratelimit:",
	}
}

// Limiter provides rate limiting using a cache counter backend.
type Limiter struct {
	counter cache.Counter
	config  *Config
}

// New creates a new rate limiter.
func New(c cache.Counter, cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Window <= 0 {
		cfg.Window = cache.TTLRateLimit
	}
	return &Limiter{
		counter: c,
		config:  cfg,
	}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

func (l *Limiter) budget() int64 {
	return l.config.RequestsPerWindow + l.config.Burst
}

// Allow consumes one unit of the key's budget and reports whether the
// request fits within the window.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	fullKey := l.config.KeyPrefix + key

	count, resetAt, err := l.counter.Increment(ctx, fullKey, 1, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.budget() - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.budget(),
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Check reports the current state for a key without consuming budget.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	fullKey := l.config.KeyPrefix + key

	count, err := l.counter.GetCount(ctx, fullKey)
	if err != nil {
		return nil, err
	}

	remaining := l.budget() - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count < l.budget(),
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.config.Window),
	}, nil
}

// Reset clears the rate limit for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Reset(ctx, l.config.KeyPrefix+key)
}
