package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLocalLimiter() (*LocalLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLocalLimiter()
	l.now = clock.Now
	return l, clock
}

func TestLocalLimiter_Burst(t *testing.T) {
	t.Parallel()

	l, _ := newTestLocalLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != int64(2-i) {
			t.Errorf("request %d: remaining = %d, want %d", i+1, res.Remaining, 2-i)
		}
	}

	res, err := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("request over burst should be denied")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}
}

func TestLocalLimiter_Refill(t *testing.T) {
	t.Parallel()

	l, clock := newTestLocalLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 2); !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 2); res.Allowed {
		t.Fatal("expected denial once the bucket is empty")
	}

	// A denied request must not consume the refilled token.
	clock.Advance(time.Second)
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 2); !res.Allowed {
		t.Fatal("expected one token after a second")
	}
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 2); res.Allowed {
		t.Fatal("expected denial after spending the refilled token")
	}
}

func TestLocalLimiter_Isolation(t *testing.T) {
	t.Parallel()

	l, _ := newTestLocalLimiter()
	ctx := context.Background()

	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 1); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 1); res.Allowed {
		t.Fatal("second request from the same IP should be denied")
	}
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.2", 60, 1); !res.Allowed {
		t.Error("another IP has its own bucket")
	}
	if res, _ := l.CheckIPRateLimit(ctx, "register", "10.0.0.1", 60, 1); !res.Allowed {
		t.Error("another scope has its own bucket")
	}
}

func TestLocalLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l, _ := newTestLocalLimiter()

	for i := 0; i < 100; i++ {
		res, err := l.CheckIPRateLimit(context.Background(), "login", "10.0.0.1", 0, 5)
		if err != nil || !res.Allowed {
			t.Fatalf("zero perMinute must allow everything (err=%v)", err)
		}
	}
	if l.Len() != 0 {
		t.Errorf("disabled limits should not create buckets, got %d", l.Len())
	}
}

func TestLocalLimiter_LimitChangeResetsBucket(t *testing.T) {
	t.Parallel()

	l, _ := newTestLocalLimiter()
	ctx := context.Background()

	l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 1)
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 1); res.Allowed {
		t.Fatal("expected denial with burst 1")
	}
	if res, _ := l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 5); !res.Allowed {
		t.Error("new burst should start a fresh bucket")
	}
}

func TestLocalLimiter_SweepsIdleBuckets(t *testing.T) {
	t.Parallel()

	l, clock := newTestLocalLimiter()
	ctx := context.Background()

	l.CheckIPRateLimit(ctx, "login", "10.0.0.1", 60, 1)
	l.CheckIPRateLimit(ctx, "login", "10.0.0.2", 60, 1)
	if l.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.Len())
	}

	clock.Advance(localIdleTTL + time.Minute)
	l.CheckIPRateLimit(ctx, "login", "10.0.0.3", 60, 1)

	if l.Len() != 1 {
		t.Errorf("expected idle buckets to be swept, got %d", l.Len())
	}
}

func TestLocalLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLocalLimiter()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := l.CheckIPRateLimit(ctx, "api", "10.0.0.1", 10, 5)
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Errorf("expected exactly burst (5) allowed, got %d", allowed)
	}
}
