package websearch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket refilled continuously from elapsed time.
type rateLimiter struct {
	lastRefill time.Time
	now        func() time.Time
	interval   time.Duration
	tokens     int
	capacity   int
	mu         sync.Mutex
}

// newRateLimiter creates a rate limiter allowing requestsPerMinute calls,
// with a burst of the same size.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}

	return &rateLimiter{
		tokens:     requestsPerMinute,
		capacity:   requestsPerMinute,
		interval:   time.Minute / time.Duration(requestsPerMinute),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay, ok := rl.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire takes a token if one is available. Otherwise it reports how
// long until the next token.
func (rl *rateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.lastRefill); elapsed >= rl.interval {
		added := int(elapsed / rl.interval)
		rl.tokens = min(rl.capacity, rl.tokens+added)
		rl.lastRefill = rl.lastRefill.Add(time.Duration(added) * rl.interval)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return 0, true
	}
	return rl.interval - now.Sub(rl.lastRefill), false
}
