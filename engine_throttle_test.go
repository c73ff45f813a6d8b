package kompasauth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoginThrottleLockout(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	for i := 0; i < 3; i++ {
		if err := engine.CheckLoginThrottle(ctx, "alice@avans.nl"); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
	}

	err := engine.CheckLoginThrottle(ctx, "alice@avans.nl")
	throttled, ok := IsThrottled(err)
	if !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("throttle errors must match ErrRateLimited")
	}
	if !strings.Contains(throttled.Message, "Limit reached") {
		t.Fatalf("message = %q", throttled.Message)
	}
	if throttled.RetryAfter != time.Minute {
		t.Fatalf("RetryAfter = %v, want 1m", throttled.RetryAfter)
	}

	// Standing block from here on, with the other message form.
	err = engine.CheckLoginThrottle(ctx, "alice@avans.nl")
	throttled, ok = IsThrottled(err)
	if !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}
	if !strings.Contains(throttled.Message, "Too many attempts") {
		t.Fatalf("message = %q", throttled.Message)
	}
}

func TestLoginThrottleKeysByAccountNotIP(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())

	// Lock the account from one address.
	for i := 0; i < 4; i++ {
		_ = engine.CheckLoginThrottle(testCtx("203.0.113.7"), "alice@avans.nl")
	}

	// A new address does not dodge the account budget.
	err := engine.CheckLoginThrottle(testCtx("198.51.100.9"), "alice@avans.nl")
	if _, ok := IsThrottled(err); !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}

	// Another account from the locked address is unaffected.
	if err := engine.CheckLoginThrottle(testCtx("203.0.113.7"), "bob@avans.nl"); err != nil {
		t.Fatalf("other account blocked: %v", err)
	}
}

func TestLoginThrottleNormalizesAccountKey(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	for i := 0; i < 3; i++ {
		if err := engine.CheckLoginThrottle(ctx, "alice@avans.nl"); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
	}

	// Case games do not buy a fresh budget.
	err := engine.CheckLoginThrottle(ctx, " ALICE@AVANS.NL ")
	if _, ok := IsThrottled(err); !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}
}

func TestLoginThrottleFallsBackToIP(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	for i := 0; i < 3; i++ {
		if err := engine.CheckLoginThrottle(ctx, ""); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
	}
	err := engine.CheckLoginThrottle(ctx, "")
	if _, ok := IsThrottled(err); !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}

	status, err := engine.BlockStatus(ctx, "ip:203.0.113.7")
	if err != nil {
		t.Fatalf("BlockStatus failed: %v", err)
	}
	if !status.Blocked {
		t.Fatal("expected block on the ip: key")
	}
}

func TestVerifyThrottleKeysByClaimedUser(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())

	pending, _ := beginTwoFactorLogin(t, engine, mailer)

	// Exhaust the budget from one address.
	for i := 0; i < 4; i++ {
		_ = engine.CheckVerifyThrottle(testCtx("203.0.113.7"), pending)
	}

	// The key came from the token's claimed user, so switching addresses
	// does not help.
	err := engine.CheckVerifyThrottle(testCtx("198.51.100.9"), pending)
	if _, ok := IsThrottled(err); !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}

	status, berr := engine.BlockStatus(testCtx("203.0.113.7"), "verify2fa:u-bob")
	if berr != nil {
		t.Fatalf("BlockStatus failed: %v", berr)
	}
	if !status.Blocked {
		t.Fatal("expected block on the verify2fa:u-bob key")
	}
}

func TestVerifyThrottleUndecodableTokenFallsBackToIP(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	for i := 0; i < 3; i++ {
		if err := engine.CheckVerifyThrottle(ctx, "garbage"); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
	}
	err := engine.CheckVerifyThrottle(ctx, "garbage")
	if _, ok := IsThrottled(err); !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}

	status, berr := engine.BlockStatus(ctx, "verify2fa:203.0.113.7")
	if berr != nil {
		t.Fatalf("BlockStatus failed: %v", berr)
	}
	if !status.Blocked {
		t.Fatal("expected block on the verify2fa:<ip> key")
	}
}

func TestIPThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.IPBurst = WindowConfig{Limit: 5, Period: time.Minute}

	_, engine, _ := newTestEngine(t, cfg)
	ctx := testCtx("203.0.113.7")

	for i := 0; i < 5; i++ {
		if err := engine.CheckIPThrottle(ctx); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
	}
	err := engine.CheckIPThrottle(ctx)
	if _, ok := IsThrottled(err); !ok {
		t.Fatalf("got %v, want ThrottleError", err)
	}

	// A different address keeps its own budget.
	if err := engine.CheckIPThrottle(testCtx("198.51.100.9")); err != nil {
		t.Fatalf("other address blocked: %v", err)
	}
}

func TestThrottleChecksFailClosedOnStoreOutage(t *testing.T) {
	mr, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	mr.Close()

	err := engine.CheckLoginThrottle(ctx, "alice@avans.nl")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
	if _, ok := IsThrottled(err); ok {
		t.Fatal("an outage is not a throttle denial")
	}
	if err := engine.CheckIPThrottle(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestThrottleDenialsCountAndAudit(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	for i := 0; i < 5; i++ {
		_ = engine.CheckLoginThrottle(ctx, "alice@avans.nl")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginRateLimited] != 2 {
		t.Fatalf("rate limited = %d, want 2", snap.Counters[MetricLoginRateLimited])
	}
}
