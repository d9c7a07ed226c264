package anaf

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/orderbridge/backend/internal/domain/company"
)

// DefaultRequestInterval is the registry's published request pacing
const DefaultRequestInterval = time.Second

// IntervalLimiter paces registry calls to at most one per interval across
// all goroutines of the process. Waiters are served in FIFO order.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalLimiter creates a limiter allowing one call per interval.
// A non-positive interval falls back to DefaultRequestInterval.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	if interval <= 0 {
		interval = DefaultRequestInterval
	}
	return &IntervalLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Acquire blocks until the caller may perform one registry call, or until the
// context is cancelled
func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Ensure IntervalLimiter implements the registry rate-limit port
var _ company.RateLimiter = (*IntervalLimiter)(nil)
