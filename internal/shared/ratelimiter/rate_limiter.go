// Package ratelimiter throttles outbound calls to upstream services.
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface blocks until an operation may proceed.
type RateLimiterInterface interface {
	Wait(ctx context.Context) error
}

// RateLimiter allows up to limit operations per interval, with bursts of up to limit.
type RateLimiter struct {
	lim  *rate.Limiter
	name string
}

// NewRateLimiter creates a limiter for limit operations per interval.
// A non-positive limit disables limiting.
func NewRateLimiter(name string, limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{lim: rate.NewLimiter(rate.Inf, 0), name: name}
	}
	every := interval / time.Duration(limit)
	return &RateLimiter{lim: rate.NewLimiter(rate.Every(every), limit), name: name}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.lim.Tokens() < 1 {
		slog.Debug("rate limit reached, waiting", "limiter", rl.name)
	}
	return rl.lim.Wait(ctx)
}
