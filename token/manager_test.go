package token

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		Secret:     testSecret,
		Issuer:     "kompasauth",
		SessionTTL: time.Hour,
		PendingTTL: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	_, err := NewManager(Config{
		Secret:     []byte("short"),
		SessionTTL: time.Hour,
		PendingTTL: 5 * time.Minute,
	})
	if err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestSessionRoundtrip(t *testing.T) {
	m := newTestManager(t)

	signed, err := m.IssueSession("u1", "Alice", "alice@avans.nl")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	claims, err := m.ParseSession(signed)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Name != "Alice" || claims.Email != "alice@avans.nl" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.IsTemp {
		t.Fatal("session token must not carry the temp marker")
	}
}

func TestPendingRoundtrip(t *testing.T) {
	m := newTestManager(t)

	signed, err := m.IssuePending("u1")
	if err != nil {
		t.Fatalf("IssuePending failed: %v", err)
	}

	claims, err := m.ParsePending(signed)
	if err != nil {
		t.Fatalf("ParsePending failed: %v", err)
	}
	if claims.UserID != "u1" || !claims.IsTemp {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestCrossKindRejected(t *testing.T) {
	m := newTestManager(t)

	session, err := m.IssueSession("u1", "Alice", "alice@avans.nl")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	pending, err := m.IssuePending("u1")
	if err != nil {
		t.Fatalf("IssuePending failed: %v", err)
	}

	// A pending token is not a session, a session does not replay 2FA.
	if _, err := m.ParseSession(pending); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("pending as session: got %v, want ErrWrongKind", err)
	}
	if _, err := m.ParsePending(session); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("session as pending: got %v, want ErrWrongKind", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m, err := NewManager(Config{
		Secret:     testSecret,
		Issuer:     "kompasauth",
		SessionTTL: time.Nanosecond,
		PendingTTL: time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	signed, err := m.IssueSession("u1", "Alice", "alice@avans.nl")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := m.ParseSession(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestForeignSignatureRejected(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(Config{
		Secret:     []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:     "kompasauth",
		SessionTTL: time.Hour,
		PendingTTL: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	signed, err := other.IssueSession("u1", "Alice", "alice@avans.nl")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if _, err := m.ParseSession(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestGarbageRejected(t *testing.T) {
	m := newTestManager(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := m.ParseSession(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("ParseSession(%q): got %v, want ErrInvalid", raw, err)
		}
		if _, err := m.ParsePending(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("ParsePending(%q): got %v, want ErrInvalid", raw, err)
		}
	}
}

func TestDecodeUnverified(t *testing.T) {
	m := newTestManager(t)

	// A mis-signed token still decodes: the claimed user id only ever
	// selects a throttle bucket.
	other, err := NewManager(Config{
		Secret:     []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:     "kompasauth",
		SessionTTL: time.Hour,
		PendingTTL: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	forged, err := other.IssuePending("u1")
	if err != nil {
		t.Fatalf("IssuePending failed: %v", err)
	}

	claims, ok := m.DecodeUnverified(forged)
	if !ok || claims.UserID != "u1" {
		t.Fatalf("DecodeUnverified = %+v, %v", claims, ok)
	}

	if _, ok := m.DecodeUnverified("garbage"); ok {
		t.Fatal("garbage must not decode")
	}
}
