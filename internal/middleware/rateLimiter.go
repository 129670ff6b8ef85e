package middleware

import (
	"sync/atomic"
	"time"
)

const (
	BurstLimit = 5
	RefillRate = 500 * time.Millisecond
)

// RateLimiter is a lock-free token bucket: burst tokens, one token regained per rate.
type RateLimiter struct {
	tokens   int32
	burst    int32
	rate     time.Duration
	lastTick int64
	now      func() time.Time
}

func NewRateLimiter(burst int32, rate time.Duration) *RateLimiter {
	return newRateLimiter(burst, rate, time.Now)
}

func newRateLimiter(burst int32, rate time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		tokens:   burst,
		burst:    burst,
		rate:     rate,
		lastTick: now().UnixNano(),
		now:      now,
	}
}

func (l *RateLimiter) Allow() bool {
	now := l.now().UnixNano()
	last := atomic.LoadInt64(&l.lastTick)

	periods := (now - last) / int64(l.rate)
	if periods > 0 {
		// Advance by whole periods only so partial progress toward the next token is kept.
		next := last + periods*int64(l.rate)
		generated := int32(min(periods, int64(l.burst)))
		if atomic.CompareAndSwapInt64(&l.lastTick, last, next) {
			for {
				current := atomic.LoadInt32(&l.tokens)
				balance := current + generated
				if balance > l.burst {
					balance = l.burst
				}
				if atomic.CompareAndSwapInt32(&l.tokens, current, balance) {
					break
				}
			}
		}
	}

	for {
		current := atomic.LoadInt32(&l.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&l.tokens, current, current-1) {
			return true
		}
	}
}
