package webhook

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(2)
	base := time.Unix(100, 0).UTC()

	if !limiter.Allow(base) {
		t.Fatal("first delivery should pass")
	}
	if !limiter.Allow(base.Add(100 * time.Millisecond)) {
		t.Fatal("second delivery should pass")
	}
	if limiter.Allow(base.Add(200 * time.Millisecond)) {
		t.Fatal("third delivery in same second should be blocked")
	}
	if !limiter.Allow(base.Add(1200 * time.Millisecond)) {
		t.Fatal("window should reset on next second")
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(1)
	frozen := time.Unix(200, 0).Add(10 * time.Millisecond)
	limiter.now = func() time.Time { return frozen }

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); err != context.Canceled {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
