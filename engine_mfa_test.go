package kompasauth

import (
	"errors"
	"testing"
	"time"
)

func beginTwoFactorLogin(t *testing.T, engine *Engine, mailer *captureMailer) (pendingToken, code string) {
	t.Helper()

	result, err := engine.Login(testCtx("203.0.113.7"), "bob@avans.nl", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !result.TwoFactorRequired || result.PendingToken == "" {
		t.Fatalf("expected 2FA challenge, got %+v", result)
	}
	if result.SessionToken != "" {
		t.Fatal("no session before 2FA confirmation")
	}

	mail := mailer.last(t)
	if mail.Email != "bob@avans.nl" {
		t.Fatalf("code mailed to %q", mail.Email)
	}
	return result.PendingToken, mail.Code
}

func TestTwoFactorRoundTrip(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	pending, code := beginTwoFactorLogin(t, engine, mailer)

	// The pending token is not a session.
	if _, err := engine.VerifySession(pending); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("pending as session: got %v, want ErrTokenInvalid", err)
	}

	result, err := engine.VerifyTwoFactor(ctx, pending, code)
	if err != nil {
		t.Fatalf("VerifyTwoFactor failed: %v", err)
	}
	if result.SessionToken == "" || result.User.ID != "u-bob" {
		t.Fatalf("result = %+v", result)
	}

	claims, err := engine.VerifySession(result.SessionToken)
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	if claims.UserID != "u-bob" {
		t.Fatalf("claims.UserID = %q", claims.UserID)
	}

	// The code was consumed: replaying the confirmation fails.
	if _, err := engine.VerifyTwoFactor(ctx, pending, code); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("replay: got %v, want ErrInvalidCode", err)
	}
}

func TestVerifyTwoFactorWrongCode(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	pending, code := beginTwoFactorLogin(t, engine, mailer)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if _, err := engine.VerifyTwoFactor(ctx, pending, wrong); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("got %v, want ErrInvalidCode", err)
	}

	// The failed guess did not burn the real code.
	if _, err := engine.VerifyTwoFactor(ctx, pending, code); err != nil {
		t.Fatalf("VerifyTwoFactor failed: %v", err)
	}
}

func TestVerifyTwoFactorRejectsBadTokens(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	if _, err := engine.VerifyTwoFactor(ctx, "", "123456"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("empty token: got %v, want ErrSessionExpired", err)
	}
	if _, err := engine.VerifyTwoFactor(ctx, "garbage", "123456"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("garbage token: got %v, want ErrSessionExpired", err)
	}

	// A full session token must not replay the 2FA step.
	_, code := beginTwoFactorLogin(t, engine, mailer)
	_ = code
	session, err := engine.Login(ctx, "alice@avans.nl", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.VerifyTwoFactor(ctx, session.SessionToken, "123456"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("session as pending: got %v, want ErrSessionExpired", err)
	}
}

func TestPendingTokenExpires(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PendingTTL = time.Nanosecond

	_, engine, mailer := newTestEngine(t, cfg)
	ctx := testCtx("203.0.113.7")

	pending, code := beginTwoFactorLogin(t, engine, mailer)
	time.Sleep(10 * time.Millisecond)

	if _, err := engine.VerifyTwoFactor(ctx, pending, code); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("got %v, want ErrSessionExpired", err)
	}
}

func TestRepeatLoginWithinMailCooldownSkipsSend(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	first, err := engine.Login(ctx, "bob@avans.nl", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	second, err := engine.Login(ctx, "bob@avans.nl", testPassword)
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if !first.TwoFactorRequired || !second.TwoFactorRequired {
		t.Fatal("both logins should demand 2FA")
	}
	if mailer.count() != 1 {
		t.Fatalf("sent %d mails, want 1 (cooldown held)", mailer.count())
	}
}

func TestMailCooldownLapses(t *testing.T) {
	mr, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	if _, err := engine.Login(ctx, "bob@avans.nl", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	mr.FastForward(11 * time.Second)
	if _, err := engine.Login(ctx, "bob@avans.nl", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if mailer.count() != 2 {
		t.Fatalf("sent %d mails, want 2", mailer.count())
	}
}

func TestMailFailureReleasesCooldown(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	mailer.fail = errors.New("smtp down")
	_, err := engine.Login(ctx, "bob@avans.nl", testPassword)
	if !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("got %v, want ErrMailUnavailable", err)
	}

	// The cooldown was rolled back, so the retry sends immediately.
	mailer.fail = nil
	result, err := engine.Login(ctx, "bob@avans.nl", testPassword)
	if err != nil {
		t.Fatalf("retry Login failed: %v", err)
	}
	if !result.TwoFactorRequired {
		t.Fatal("expected 2FA challenge")
	}
	if mailer.count() != 1 {
		t.Fatalf("sent %d mails, want 1", mailer.count())
	}
}

func TestTwoFactorSuccessResetsVerifyDimension(t *testing.T) {
	_, engine, mailer := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	pending, code := beginTwoFactorLogin(t, engine, mailer)

	// Spend most of the verify budget on bad guesses.
	for i := 0; i < 2; i++ {
		if err := engine.CheckVerifyThrottle(ctx, pending); err != nil {
			t.Fatalf("verify check %d: %v", i+1, err)
		}
	}

	if _, err := engine.VerifyTwoFactor(ctx, pending, code); err != nil {
		t.Fatalf("VerifyTwoFactor failed: %v", err)
	}

	status, err := engine.BlockStatus(ctx, "verify2fa:u-bob")
	if err != nil {
		t.Fatalf("BlockStatus failed: %v", err)
	}
	if status.Blocked {
		t.Fatal("success must clear the verify2fa dimension")
	}
}

func TestLogout(t *testing.T) {
	_, engine, _ := newTestEngine(t, testConfig())
	ctx := testCtx("203.0.113.7")

	result, err := engine.Login(ctx, "alice@avans.nl", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	engine.Logout(ctx, result.SessionToken)
	engine.Logout(ctx, "") // anonymous logout still counts

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLogout] != 2 {
		t.Fatalf("logout = %d, want 2", snap.Counters[MetricLogout])
	}
}
