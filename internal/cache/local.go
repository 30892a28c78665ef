package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localIdleTTL is how long an untouched bucket is kept before it is swept.
const localIdleTTL = 10 * time.Minute

// LocalLimiter is an in-process per-IP token bucket used when Redis is not
// configured. Buckets are not shared between instances.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates an empty in-process limiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// CheckIPRateLimit takes one token from the bucket for scope and ip.
// It has the same contract as Cache.CheckIPRateLimit and never fails.
func (l *LocalLimiter) CheckIPRateLimit(_ context.Context, scope, ip string, perMinute, burst int) (*RateLimitResult, error) {
	now := l.now()
	if perMinute <= 0 {
		return allowAll(now, burst), nil
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(float64(perMinute) / 60.0)
	key := rateLimitKey(scope, ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok || b.limiter.Limit() != limit || b.limiter.Burst() != burst {
		b = &localBucket{limiter: rate.NewLimiter(limit, burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	refill := time.Duration(float64(time.Second) / float64(limit))

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}, nil
	}

	remaining := int64(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   now.Add(refill),
	}, nil
}

// Len returns the number of live buckets.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets at most once per minute. Caller holds l.mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > localIdleTTL {
			delete(l.buckets, key)
		}
	}
}
