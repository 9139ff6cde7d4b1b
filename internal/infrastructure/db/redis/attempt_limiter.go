package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts attempts per key in a fixed window.
// Key format: login_attempts:<key>
type AttemptLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewAttemptLimiter(client *redis.Client, maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AttemptLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Reserve counts an attempt for key and reports whether it is within the
// limit. The window starts with the first attempt; SET NX EX and INCR run in
// one MULTI so the counter never exists without its expiry.
func (l *AttemptLimiter) Reserve(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("attempt record: %w", err)
	}
	return incr.Val() <= l.maxAttempts, nil
}

// Reset forgets key after a successful attempt.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *AttemptLimiter) key(key string) string {
	return "login_attempts:" + key
}
