package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimiter keeps a token bucket per key. Each attempt spends a token;
// tokens refill at maxAttempts per window, so a key that burned its whole
// budget is locked out for roughly window/maxAttempts per retry. Buckets that
// have fully refilled are swept at most once per window.
type AttemptLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewAttemptLimiter(maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AttemptLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Every(window / time.Duration(maxAttempts)),
		burst:     maxAttempts,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Reserve spends one token for key and reports whether the attempt fits.
// A rejected attempt spends nothing.
func (l *AttemptLimiter) Reserve(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim.AllowN(now, 1), nil
}

// Reset forgets key after a successful attempt.
func (l *AttemptLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
	return nil
}

// sweep drops buckets that are back to a full budget. Callers hold mu.
func (l *AttemptLimiter) sweep(now time.Time) {
	for key, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

