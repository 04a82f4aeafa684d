// Package ratelimit throttles clients of the public API with one token
// bucket per key, refilled continuously at limit tokens per window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	seen   time.Time
}

type Limiter struct {
	limit  float64
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]bucket
}

// New allows limit requests per window and per key. A non-positive limit
// throttles everything.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   float64(limit),
		window:  window,
		now:     time.Now,
		buckets: make(map[string]bucket),
	}
}

// Allow takes a token from key when one is available.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Take(key)
	return ok
}

// Take is Allow that also says, when throttled, how long until key has a
// whole token again.
func (l *Limiter) Take(key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return false, l.window
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = bucket{tokens: l.limit, seen: now}
	} else {
		refill := now.Sub(b.seen).Seconds() * l.perSecond()
		b.tokens = min(l.limit, b.tokens+refill)
		b.seen = now
	}

	if b.tokens < 1 {
		l.buckets[key] = b
		wait := time.Duration((1 - b.tokens) * float64(l.window) / l.limit)
		return false, wait.Round(time.Millisecond)
	}
	b.tokens--
	l.buckets[key] = b
	return true, 0
}

func (l *Limiter) perSecond() float64 {
	return l.limit / l.window.Seconds()
}

// Reset forgets key, giving it a full bucket.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Run evicts keys idle for two windows, every interval, until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	evicted := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}
