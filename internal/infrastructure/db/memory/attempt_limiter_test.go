package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAttemptLimiter_LocksAfterMaxAttempts(t *testing.T) {
	l := NewAttemptLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := l.Reserve(ctx, "alice"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Reserve(ctx, "alice"); ok {
		t.Fatalf("expected lockout after 3 attempts")
	}
	if ok, _ := l.Reserve(ctx, "bob"); !ok {
		t.Fatalf("other keys must not be affected")
	}
}

func TestAttemptLimiter_ResetClearsKey(t *testing.T) {
	l := NewAttemptLimiter(1, time.Hour)
	ctx := context.Background()

	_, _ = l.Reserve(ctx, "alice")
	if ok, _ := l.Reserve(ctx, "alice"); ok {
		t.Fatalf("expected lockout")
	}
	_ = l.Reset(ctx, "alice")
	if ok, _ := l.Reserve(ctx, "alice"); !ok {
		t.Fatalf("expected allow after reset")
	}
}

func TestAttemptLimiter_ConcurrentAttemptsRespectBudget(t *testing.T) {
	l := NewAttemptLimiter(3, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := l.Reserve(context.Background(), "alice")
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 3 {
		t.Fatalf("expected exactly 3 granted attempts, got %d", granted)
	}
}

func TestAttemptLimiter_SuccessfulAttemptsLeaveNoState(t *testing.T) {
	l := NewAttemptLimiter(5, time.Hour)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("user-%d", i)
		if ok, _ := l.Reserve(ctx, key); !ok {
			t.Fatalf("%s should be allowed", key)
		}
		_ = l.Reset(ctx, key)
	}
	if n := len(l.limiters); n != 0 {
		t.Fatalf("expected no buckets, got %d", n)
	}
}

func TestAttemptLimiter_SweepsRefilledBuckets(t *testing.T) {
	l := NewAttemptLimiter(2, time.Minute)
	ctx := context.Background()

	clock := time.Now()
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	for i := 0; i < 100; i++ {
		_, _ = l.Reserve(ctx, fmt.Sprintf("ghost-%d", i))
	}
	clock = clock.Add(50 * time.Second)
	_, _ = l.Reserve(ctx, "alice")
	_, _ = l.Reserve(ctx, "alice")
	if n := len(l.limiters); n != 101 {
		t.Fatalf("expected 101 buckets, got %d", n)
	}

	// A window after the last sweep the ghosts have refilled; alice has not.
	clock = clock.Add(10 * time.Second)
	if ok, _ := l.Reserve(ctx, "alice"); ok {
		t.Fatalf("alice should still be locked out")
	}
	if n := len(l.limiters); n != 1 {
		t.Fatalf("expected only alice to be tracked after the sweep, got %d", n)
	}
}
