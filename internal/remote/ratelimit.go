package remote

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces requests evenly so a service sees at most
// requestsPerMinute of them. A nil limiter never waits.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

// NewRateLimiter returns nil for a non-positive rate
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return &RateLimiter{interval: time.Minute / time.Duration(requestsPerMinute), now: time.Now}
}

// Wait blocks until the caller's slot comes up or ctx is done. The slot is
// reserved on entry, so concurrent callers queue in arrival order.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	now := rl.now()
	if rl.next.Before(now) {
		rl.next = now
	}
	delay := rl.next.Sub(now)
	rl.next = rl.next.Add(rl.interval)
	rl.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
