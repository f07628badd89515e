package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/prepshare/prepshare-go/internal/cache/memory"
	"github.com/prepshare/prepshare-go/internal/ratelimit"
)

func TestLimiterAllow(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(cache, cfg)
	ctx := context.Background()

	// First 5 requests should be allowed
	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "client1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		expectedRemaining := int64(4 - i)
		if result.Remaining != expectedRemaining {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, expectedRemaining, result.Remaining)
		}
	}

	// 6th request should be denied
	result, err := limiter.Allow(ctx, "client1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("6th request should be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", result.Remaining)
	}
}

func TestLimiterBurst(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 2,
		Burst:             1,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(cache, cfg)
	ctx := context.Background()

	// Budget plus burst is 3
	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "client1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d should fit within burst", i+1)
		}
	}
	result, _ := limiter.Allow(ctx, "client1")
	if result.Allowed {
		t.Error("4th request should exceed burst")
	}
}

func TestLimiterDifferentKeys(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(cache, cfg)
	ctx := context.Background()

	// Exhaust client1's quota
	limiter.Allow(ctx, "client1")
	limiter.Allow(ctx, "client1")
	result, _ := limiter.Allow(ctx, "client1")
	if result.Allowed {
		t.Error("client1 should be rate limited")
	}

	// client2 should still have quota
	result, _ = limiter.Allow(ctx, "client2")
	if !result.Allowed {
		t.Error("client2 should be allowed")
	}
}

func TestLimiterCheck(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(cache, cfg)
	ctx := context.Background()

	// Check without any requests
	result, err := limiter.Check(ctx, "client1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Allowed {
		t.Error("should be allowed before any requests")
	}
	if result.Remaining != 5 {
		t.Errorf("expected remaining 5, got %d", result.Remaining)
	}

	// Make some requests
	limiter.Allow(ctx, "client1")
	limiter.Allow(ctx, "client1")

	// Check should not increment
	result, _ = limiter.Check(ctx, "client1")
	if result.Remaining != 3 {
		t.Errorf("expected remaining 3, got %d", result.Remaining)
	}

	// Check again - should be same
	result, _ = limiter.Check(ctx, "client1")
	if result.Remaining != 3 {
		t.Errorf("Check should not decrement, expected 3, got %d", result.Remaining)
	}
}

func TestLimiterReset(t *testing.T) {
	cache := memory.New(time.Minute, 0)
	defer cache.Close()

	cfg := &ratelimit.Config{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	}
	limiter := ratelimit.New(cache, cfg)
	ctx := context.Background()

	// Exhaust quota
	limiter.Allow(ctx, "client1")
	limiter.Allow(ctx, "client1")

	// Reset
	if err := limiter.Reset(ctx, "client1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	// Should be allowed again
	result, _ := limiter.Allow(ctx, "client1")
	if !result.Allowed {
		t.Error("should be allowed after reset")
	}
}
