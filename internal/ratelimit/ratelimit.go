package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter paces page loads so a batch does not hammer the marketplaces.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// JitteredRateLimiter enforces a randomized delay between actions. Jitter
// keeps the request cadence from looking machine-regular.
type JitteredRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewJitteredRateLimiter(minDelay, maxDelay time.Duration) *JitteredRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitteredRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (r *JitteredRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *JitteredRateLimiter) calculateDelay() time.Duration {
	if r.minDelay == r.maxDelay {
		return r.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(r.maxDelay - r.minDelay)))
	return r.minDelay + jitter
}

// None performs no pacing. Used in tests and when an upstream proxy already
// rate-limits.
type None struct{}

func (None) Wait(context.Context) error { return nil }
