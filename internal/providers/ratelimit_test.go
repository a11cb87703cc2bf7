package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to limit", func(t *testing.T) {
		r := NewRateLimiter(3)
		for i := 0; i < 3; i++ {
			if !r.TryConsume() {
				t.Fatalf("TryConsume() #%d = false, want true", i+1)
			}
		}
		if r.TryConsume() {
			t.Error("TryConsume() after burst = true, want false")
		}
		if got := r.Status().TotalConsumed; got != 3 {
			t.Errorf("TotalConsumed = %d, want 3", got)
		}
	})

	t.Run("wait honors context", func(t *testing.T) {
		r := NewRateLimiter(1)
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("first Wait() error = %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() = %v, want deadline exceeded", err)
		}
	})

	t.Run("429 drains bucket", func(t *testing.T) {
		r := NewRateLimiter(100)
		r.Record429(time.Second)
		if r.TryConsume() {
			t.Error("TryConsume() after Record429 = true, want false")
		}
		if r.Status().Last429Time.IsZero() {
			t.Error("Last429Time not recorded")
		}
	})

	t.Run("nil limiter never blocks", func(t *testing.T) {
		r := NewRateLimiter(0)
		if r != nil {
			t.Fatal("NewRateLimiter(0) should be nil")
		}
		if err := r.Wait(context.Background()); err != nil {
			t.Errorf("Wait() = %v", err)
		}
		if !r.TryConsume() {
			t.Error("TryConsume() on nil limiter = false")
		}
	})

	t.Run("per second conversion", func(t *testing.T) {
		if got := NewRateLimiterPerSecond(6).Status().TokensLimit; got != 360 {
			t.Errorf("TokensLimit = %d, want 360", got)
		}
		if got := NewRateLimiterPerSecond(0.001).Status().TokensLimit; got != 1 {
			t.Errorf("TokensLimit = %d, want 1", got)
		}
	})
}
