package webhook

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a max deliveries-per-second budget.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	windowSec int64
	count     int
	now       func() time.Time
}

// NewRateLimiter creates a limiter with a per-second cap.
func NewRateLimiter(limit int) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{limit: limit, now: time.Now}
}

// Allow returns true if one more delivery fits in the second containing now.
func (l *RateLimiter) Allow(now time.Time) bool {
	sec := now.UTC().Unix()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windowSec != sec {
		l.windowSec = sec
		l.count = 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Wait blocks until a delivery is allowed or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		now := l.now()
		if l.Allow(now) {
			return nil
		}
		next := now.Truncate(time.Second).Add(time.Second)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
