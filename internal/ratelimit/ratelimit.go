// Package ratelimit throttles outgoing turns with one token bucket per
// provider.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter hands out tokens per key. Each key refills independently at
// maxTokens per window and enforces a minimum gap between requests.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxTokens   int
	refillRate  time.Duration // time to earn one token
	minInterval time.Duration
	now         func() time.Time
}

type bucket struct {
	tokens      int
	lastRefill  time.Time
	lastRequest time.Time
}

// New creates a limiter allowing maxRequests per window for each key, with
// at least minInterval between two requests on the same key.
func New(maxRequests int, window time.Duration, minInterval time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	if minInterval < 0 {
		minInterval = 0
	}

	refillRate := window / time.Duration(maxRequests)
	if refillRate <= 0 {
		refillRate = time.Nanosecond
	}

	return &Limiter{
		buckets:     make(map[string]*bucket),
		maxTokens:   maxRequests,
		refillRate:  refillRate,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Wait blocks until key may send, or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		delay := l.reserve(key)
		if delay <= 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// reserve consumes a token for key and returns 0, or returns how long to
// wait before trying again.
func (l *Limiter) reserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[key] = b
	}

	if l.refillRate > 0 {
		if earned := int(now.Sub(b.lastRefill) / l.refillRate); earned > 0 {
			b.tokens = min(l.maxTokens, b.tokens+earned)
			b.lastRefill = b.lastRefill.Add(time.Duration(earned) * l.refillRate)
		}
	}

	if !b.lastRequest.IsZero() {
		if gap := now.Sub(b.lastRequest); gap < l.minInterval {
			return l.minInterval - gap
		}
	}

	if b.tokens <= 0 {
		if l.refillRate <= 0 {
			return l.minIntervalOr(time.Millisecond)
		}
		if wait := b.lastRefill.Add(l.refillRate).Sub(now); wait > 0 {
			return wait
		}
		return l.refillRate
	}

	b.tokens--
	b.lastRequest = now
	return 0
}

func (l *Limiter) minIntervalOr(d time.Duration) time.Duration {
	if l.minInterval > 0 {
		return l.minInterval
	}
	return d
}
