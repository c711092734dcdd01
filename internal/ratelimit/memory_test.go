package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryLimiterExhaustsWindow(t *testing.T) {
	limiter := NewMemoryLimiter(0, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		result, errAllow := limiter.Allow(context.Background(), "k", 5, time.Minute, now.Add(time.Duration(i)*time.Second))
		if errAllow != nil {
			t.Fatalf("allow %d: %v", i, errAllow)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if want := 4 - i; result.Remaining != want {
			t.Fatalf("request %d: expected remaining %d, got %d", i, want, result.Remaining)
		}
	}

	result, errAllow := limiter.Allow(context.Background(), "k", 5, time.Minute, now.Add(11*time.Second))
	if errAllow != nil {
		t.Fatalf("allow denied request: %v", errAllow)
	}
	if result.Allowed {
		t.Fatalf("6th request in window should be denied")
	}
	if result.RetryAfter != 49 {
		t.Fatalf("expected retry after 49s, got %d", result.RetryAfter)
	}
	if !result.Reset.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected reset at window end, got %s", result.Reset)
	}
}

func TestMemoryLimiterTracksNewKeyImmediately(t *testing.T) {
	limiter := NewMemoryLimiter(0, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, errAllow := limiter.Allow(context.Background(), "k", 2, time.Minute, now); errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	// The entry inserted by the first call must survive the insert-time
	// prune; otherwise every request starts a fresh counter.
	if limiter.Len() != 1 {
		t.Fatalf("expected 1 tracked key after first request, got %d", limiter.Len())
	}

	wantRemaining := []int{0, -1, -1, -1}
	for i, want := range wantRemaining {
		result, errAllow := limiter.Allow(context.Background(), "k", 2, time.Minute, now)
		if errAllow != nil {
			t.Fatalf("allow %d: %v", i, errAllow)
		}
		if want < 0 {
			if result.Allowed {
				t.Fatalf("request %d should be denied once the limit is spent", i+2)
			}
			continue
		}
		if !result.Allowed || result.Remaining != want {
			t.Fatalf("request %d: expected allowed with remaining %d, got allowed=%v remaining=%d",
				i+2, want, result.Allowed, result.Remaining)
		}
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	limiter := NewMemoryLimiter(0, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if result, _ := limiter.Allow(context.Background(), "k", 3, time.Minute, now); !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if result, _ := limiter.Allow(context.Background(), "k", 3, time.Minute, now); result.Allowed {
		t.Fatalf("4th request should be denied")
	}

	later := now.Add(time.Minute)
	result, errAllow := limiter.Allow(context.Background(), "k", 3, time.Minute, later)
	if errAllow != nil {
		t.Fatalf("allow after reset: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("request after window elapse should be admitted")
	}
	if result.Remaining != 2 {
		t.Fatalf("expected remaining 2 after reset, got %d", result.Remaining)
	}
}

func TestMemoryLimiterConcurrentNoOverAdmission(t *testing.T) {
	limiter := NewMemoryLimiter(0, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	const limit = 25

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 2*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, errAllow := limiter.Allow(context.Background(), "hot", limit, time.Minute, now)
			if errAllow != nil {
				t.Errorf("allow: %v", errAllow)
				return
			}
			if result.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Fatalf("expected exactly %d admitted, got %d", limit, admitted.Load())
	}
}

func TestMemoryLimiterDistinctKeysIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(0, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if result, _ := limiter.Allow(context.Background(), "a", 1, time.Minute, now); !result.Allowed {
		t.Fatalf("first request for a should be allowed")
	}
	if result, _ := limiter.Allow(context.Background(), "a", 1, time.Minute, now); result.Allowed {
		t.Fatalf("second request for a should be denied")
	}
	if result, _ := limiter.Allow(context.Background(), "b", 1, time.Minute, now); !result.Allowed {
		t.Fatalf("request for b should not share a's counter")
	}
}

func TestMemoryLimiterEvictsBeyondCapacity(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, key := range []string{"a", "b", "c", "d"} {
		if _, errAllow := limiter.Allow(context.Background(), key, 10, time.Minute, now); errAllow != nil {
			t.Fatalf("allow %s: %v", key, errAllow)
		}
	}
	if limiter.Len() != 3 {
		t.Fatalf("expected 3 tracked keys after eviction, got %d", limiter.Len())
	}

	// "a" was least recently used, so its counter restarted.
	result, _ := limiter.Allow(context.Background(), "a", 10, time.Minute, now)
	if result.Remaining != 9 {
		t.Fatalf("expected evicted key to restart at remaining 9, got %d", result.Remaining)
	}
}

func TestMemoryLimiterSweepExpired(t *testing.T) {
	limiter := NewMemoryLimiter(100, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, errAllow := limiter.Allow(context.Background(), "idle", 10, time.Minute, now); errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if _, errAllow := limiter.Allow(context.Background(), "fresh", 10, time.Minute, now.Add(30*time.Second)); errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}

	removed := limiter.SweepExpired(now.Add(61 * time.Second))
	if removed != 1 {
		t.Fatalf("expected 1 swept entry, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Fatalf("expected 1 tracked key after sweep, got %d", limiter.Len())
	}
}

func TestMemoryLimiterZeroLimitPassesThrough(t *testing.T) {
	limiter := NewMemoryLimiter(0, 0)
	result, errAllow := limiter.Allow(context.Background(), "k", 0, time.Minute, time.Now())
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("zero limit should pass through")
	}
}
