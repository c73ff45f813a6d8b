package kompasauth

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/keuzekompas/kompasauth/internal/audit"
	"github.com/keuzekompas/kompasauth/internal/flows"
	"github.com/keuzekompas/kompasauth/internal/guard"
	"github.com/keuzekompas/kompasauth/internal/penalty"
	"github.com/keuzekompas/kompasauth/internal/rate"
	"github.com/keuzekompas/kompasauth/internal/twofactor"
	"github.com/keuzekompas/kompasauth/password"
	"github.com/keuzekompas/kompasauth/token"
)

// Engine is the login, session, and abuse-mitigation facade. Build one with
// a [Builder]; all methods are safe for concurrent use.
//
// The engine is transport-agnostic. Callers attach the client address with
// [WithClientIP], run the matching Check*Throttle method before the
// operation, and map the returned sentinels to their own error surface.
type Engine struct {
	config Config

	penalties  *penalty.Manager
	limiter    *rate.Limiter
	challenges *twofactor.Store
	tokens     *token.Manager
	passwords  *password.Verifier

	loginGuard  *guard.Guard
	verifyGuard *guard.Guard
	ipGuard     *guard.Guard

	credentials CredentialStore
	mailer      Mailer

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	flows flows.Service
}

func (e *Engine) ready() error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// Login runs the password stage for the given credentials. The caller must
// have admitted the request through [Engine.CheckLoginThrottle] first.
//
// Accounts without 2FA receive a session token directly. Accounts with 2FA
// receive a mailed one-time code and a pending token to present to
// [Engine.VerifyTwoFactor]. Bad credentials return [ErrInvalidCredentials]
// regardless of whether the account exists.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	result, err := e.flows.Login(ctx, email, pass)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		TwoFactorRequired: result.TwoFactorRequired,
		PendingToken:      result.PendingToken,
		SessionToken:      result.SessionToken,
		User:              userInfo(result.User),
	}, nil
}

// VerifyTwoFactor confirms the mailed code against the pending token and
// exchanges both for a full session token. The caller must have admitted the
// request through [Engine.CheckVerifyThrottle] first.
//
// A missing, expired, or non-pending token returns [ErrSessionExpired]; a
// wrong or consumed code returns [ErrInvalidCode].
func (e *Engine) VerifyTwoFactor(ctx context.Context, pendingToken, code string) (*VerifyResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	result, err := e.flows.VerifyTwoFactor(ctx, pendingToken, code)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		SessionToken: result.SessionToken,
		User:         userInfo(result.User),
	}, nil
}

// Logout records a logout. Session tokens are stateless, so this only feeds
// observability; invalidation happens by clearing the client's cookie.
func (e *Engine) Logout(ctx context.Context, sessionToken string) {
	if e.ready() != nil {
		return
	}
	e.flows.Logout(ctx, sessionToken)
}

// VerifySession verifies a full session token and returns its claims.
// Pending-2FA tokens and otherwise invalid tokens fail with
// [ErrTokenInvalid].
func (e *Engine) VerifySession(sessionToken string) (*token.Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	claims, err := e.tokens.ParseSession(sessionToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// BlockStatus reports the standing block for a penalty key such as
// "ip:203.0.113.7" or "account:student@avans.nl". Read-only; consumes no
// quota.
func (e *Engine) BlockStatus(ctx context.Context, key string) (BlockStatus, error) {
	if err := e.ready(); err != nil {
		return BlockStatus{}, err
	}
	status, err := e.penalties.GetBlockData(ctx, key)
	if err != nil {
		return BlockStatus{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return status, nil
}

// HashPassword produces a credential hash suitable for storage in the
// engine's credential store.
func (e *Engine) HashPassword(pass string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	return e.passwords.Hash(pass)
}

// Ping verifies the throttle store is reachable. Intended for health
// endpoints; the engine itself fails closed when the store is down.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.penalties.Level(ctx, "healthcheck"); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.audit.Close()
	return nil
}

func userInfo(user flows.UserRecord) UserInfo {
	return UserInfo{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
}

// IsThrottled reports whether err is a throttle denial and returns the
// structured error when it is.
func IsThrottled(err error) (*ThrottleError, bool) {
	var te *ThrottleError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
