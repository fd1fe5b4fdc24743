package limiter

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/23skdu/geoprobe/internal/metrics"
)

// ErrRateLimited is returned when the caller's deadline expires before a token frees up
var ErrRateLimited = errors.New("rate limit exceeded")

// Config holds rate limiter configuration
type Config struct {
	RPS   int `envconfig:"RPS" default:"0"`   // 0 means disabled
	Burst int `envconfig:"BURST" default:"0"` // 0 means use RPS
}

// RateLimiter paces outbound embedding requests with a token bucket
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg Config) *RateLimiter {
	if cfg.RPS <= 0 {
		return &RateLimiter{enabled: false}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RPS
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		enabled: true,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil || !l.enabled {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		metrics.RateLimitRequestsTotal.WithLabelValues("throttled").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Wait fails early when the deadline cannot be met
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
	return nil
}
