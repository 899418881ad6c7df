package api

import (
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst then deny", func(t *testing.T) {
		rl := NewRateLimiter(1, 3)
		for i := 0; i < 3; i++ {
			if !rl.allow("10.0.0.1") {
				t.Fatalf("request %d within burst should be allowed", i+1)
			}
		}
		if rl.allow("10.0.0.1") {
			t.Error("request past the burst should be denied")
		}
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		rl := NewRateLimiter(100, 1)
		if !rl.allow("10.0.0.2") {
			t.Fatal("first request should be allowed")
		}
		if rl.allow("10.0.0.2") {
			t.Error("drained bucket should deny")
		}
		time.Sleep(50 * time.Millisecond)
		if !rl.allow("10.0.0.2") {
			t.Error("bucket should have refilled")
		}
	})

	t.Run("buckets are per IP", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		if !rl.allow("10.0.0.3") || !rl.allow("10.0.0.4") {
			t.Error("distinct IPs must not share a bucket")
		}
	})

	t.Run("stale buckets are dropped", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		rl.allow("10.0.0.5")
		rl.mu.Lock()
		rl.buckets["10.0.0.5"].seen = time.Now().Add(-2 * bucketTTL)
		rl.mu.Unlock()

		rl.dropStale()

		rl.mu.Lock()
		_, ok := rl.buckets["10.0.0.5"]
		rl.mu.Unlock()
		if ok {
			t.Error("stale bucket should have been dropped")
		}
	})
}
