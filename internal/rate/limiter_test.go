package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

var loginWindow = Window{Name: "login", Limit: 5, Period: time.Minute}

func TestHitWithinLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	l := New(rdb)

	for i := 0; i < loginWindow.Limit; i++ {
		if err := l.Hit(ctx, loginWindow, "account:alice@avans.nl"); err != nil {
			t.Fatalf("hit %d: %v", i+1, err)
		}
	}

	count, err := l.Count(ctx, loginWindow, "account:alice@avans.nl")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != loginWindow.Limit {
		t.Fatalf("count = %d, want %d", count, loginWindow.Limit)
	}
}

func TestHitExceedsLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	l := New(rdb)

	for i := 0; i < loginWindow.Limit; i++ {
		if err := l.Hit(ctx, loginWindow, "account:alice@avans.nl"); err != nil {
			t.Fatalf("hit %d: %v", i+1, err)
		}
	}

	err := l.Hit(ctx, loginWindow, "account:alice@avans.nl")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("got %v, want ErrLimitExceeded", err)
	}
}

func TestWindowResetsAfterPeriod(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	l := New(rdb)

	for i := 0; i <= loginWindow.Limit; i++ {
		_ = l.Hit(ctx, loginWindow, "ip:203.0.113.7")
	}

	mr.FastForward(loginWindow.Period + time.Second)

	if err := l.Hit(ctx, loginWindow, "ip:203.0.113.7"); err != nil {
		t.Fatalf("hit after window reset failed: %v", err)
	}
	count, err := l.Count(ctx, loginWindow, "ip:203.0.113.7")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after reset = %d, want 1", count)
	}
}

func TestWindowsAndKeysAreIndependent(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	l := New(rdb)
	verifyWindow := Window{Name: "verify2fa", Limit: 5, Period: time.Minute}

	for i := 0; i < loginWindow.Limit; i++ {
		if err := l.Hit(ctx, loginWindow, "account:alice@avans.nl"); err != nil {
			t.Fatalf("hit %d: %v", i+1, err)
		}
	}

	// Same key, different window: fresh budget.
	if err := l.Hit(ctx, verifyWindow, "account:alice@avans.nl"); err != nil {
		t.Fatalf("other window shares budget: %v", err)
	}
	// Same window, different key: fresh budget.
	if err := l.Hit(ctx, loginWindow, "account:bob@avans.nl"); err != nil {
		t.Fatalf("other key shares budget: %v", err)
	}
}

func TestReset(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	l := New(rdb)

	for i := 0; i <= loginWindow.Limit; i++ {
		_ = l.Hit(ctx, loginWindow, "account:alice@avans.nl")
	}
	if err := l.Reset(ctx, loginWindow, "account:alice@avans.nl"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := l.Hit(ctx, loginWindow, "account:alice@avans.nl"); err != nil {
		t.Fatalf("hit after reset failed: %v", err)
	}
}

func TestBackendUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	l := New(rdb)

	err := l.Hit(context.Background(), loginWindow, "ip:x")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("got %v, want ErrBackendUnavailable", err)
	}
}
