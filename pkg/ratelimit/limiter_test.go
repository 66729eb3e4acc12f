package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastConfig returns a limiter config whose token bucket never throttles the
// test, so the property under test is isolated.
func fastConfig(maxInFlight int) Config {
	return Config{
		MaxInFlight:       maxInFlight,
		RequestsPerSecond: 10000,
		Burst:             10000,
		Cooldown:          time.Second,
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", fastConfig(5), false},
		{"zero in-flight", Config{MaxInFlight: 0, RequestsPerSecond: 1}, true},
		{"zero rate", Config{MaxInFlight: 1, RequestsPerSecond: 0}, true},
		{"burst defaults", Config{MaxInFlight: 3, RequestsPerSecond: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLimiter_ConcurrencyBound(t *testing.T) {
	limiter, err := New(fastConfig(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if limiter.InFlight() != 2 {
		t.Errorf("InFlight = %d, want 2", limiter.InFlight())
	}

	// The third acquire must block until a slot is released.
	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blockedCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() with full slots = %v, want deadline exceeded", err)
	}

	limiter.Release()
	if err := limiter.Acquire(ctx); err != nil {
		t.Errorf("Acquire() after release = %v, want success", err)
	}

	limiter.Release()
	limiter.Release()
	if limiter.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0 after releases", limiter.InFlight())
	}
}

func TestLimiter_CooldownBlocksAcquires(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Cooldown = 150 * time.Millisecond
	limiter, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	limiter.SignalRateLimited(0)
	if !limiter.CoolingDown() {
		t.Fatal("limiter should be cooling down")
	}

	// No token is issued during the cooldown window.
	blockedCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blockedCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() during cooldown = %v, want deadline exceeded", err)
	}
	if limiter.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0 (no slot held through a failed acquire)", limiter.InFlight())
	}

	// After the window passes, acquires proceed.
	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() after cooldown = %v", err)
	}
	limiter.Release()
	if time.Since(start) > 2*time.Second {
		t.Error("Acquire took far longer than the cooldown window")
	}
}

func TestLimiter_CooldownHonorsRetryAfter(t *testing.T) {
	cfg := fastConfig(1)
	cfg.Cooldown = 10 * time.Millisecond
	limiter, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Retry-After longer than the configured cooldown wins.
	limiter.SignalRateLimited(300 * time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	if !limiter.CoolingDown() {
		t.Error("cooldown should still be active; Retry-After extends the window")
	}
}

func TestLimiter_AcquireCancellable(t *testing.T) {
	limiter, err := New(fastConfig(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- limiter.Acquire(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Acquire ignored cancellation")
	}
}

func TestLimiter_TokenBucketPacing(t *testing.T) {
	limiter, err := New(Config{
		MaxInFlight:       10,
		RequestsPerSecond: 50,
		Burst:             1,
		Cooldown:          time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// With burst 1 and 50 req/s, five acquires need roughly 80ms of refill.
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		limiter.Release()
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("five acquires took %v, expected the token bucket to pace them", elapsed)
	}
}
