package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prepshare/prepshare-go/internal/cache"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %s", got)
	}
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	_, err := c.Get(context.Background(), "nope")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	if !errors.Is(err, cache.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", []byte("abc"), 0)

	got, _ := c.Get(ctx, "k")
	got[0] = 'x'

	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("cached value was mutated: %s", again)
	}
}

func TestCounter(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	ctx := context.Background()

	n, _, err := c.Increment(ctx, "ctr", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}

	n, _, _ = c.Increment(ctx, "ctr", 2, time.Minute)
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}

	if err := c.Reset(ctx, "ctr"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	n, _ = c.GetCount(ctx, "ctr")
	if n != 0 {
		t.Errorf("expected 0 after reset, got %d", n)
	}
}
