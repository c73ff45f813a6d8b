package kompasauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/keuzekompas/kompasauth/internal/flows"
	"github.com/keuzekompas/kompasauth/internal/guard"
	"github.com/keuzekompas/kompasauth/internal/penalty"
)

// Throttle checks run BEFORE their operation and own the key derivation per
// endpoint class. Admission is a side effect: every admitted request spends
// one slot of each window the guard covers.
//
// Store failures deny the request with [ErrStoreUnavailable]. The throttle
// layer fails closed: an unreachable Redis must not turn into an unthrottled
// login endpoint.

// CheckLoginThrottle admits or denies a login attempt. The tracking key is
// the normalized account identifier, so attempts on one account from many
// addresses share a budget and a noisy neighbor behind the same NAT does not
// lock out everyone else. Requests without a usable email fall back to the
// client address.
func (e *Engine) CheckLoginThrottle(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	key := ""
	if normalized := flows.NormalizeEmail(email); normalized != "" {
		key = "account:" + normalized
	} else {
		key = "ip:" + clientIPOrUnknown(ctx)
	}
	return e.checkGuard(ctx, e.loginGuard, key, "", MetricLoginRateLimited, EventLoginRateLimited)
}

// CheckVerifyThrottle admits or denies a 2FA confirmation attempt. The
// tracking key is the user id claimed by the pending token, decoded WITHOUT
// signature verification: the value only selects a throttle bucket and
// grants nothing, and deriving it before full validation keeps forged-token
// floods from all landing in one shared bucket. Undecodable tokens fall back
// to the client address.
func (e *Engine) CheckVerifyThrottle(ctx context.Context, pendingToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	key := "verify2fa:" + clientIPOrUnknown(ctx)
	userID := ""
	if claims, ok := e.tokens.DecodeUnverified(pendingToken); ok {
		key = "verify2fa:" + claims.UserID
		userID = claims.UserID
	}
	return e.checkGuard(ctx, e.verifyGuard, key, userID, MetricTwoFactorRateLimited, EventTwoFactorRateLimited)
}

// CheckIPThrottle admits or denies a request against the coarse per-address
// ceiling shared by all auth routes. Run it before the route-specific check.
func (e *Engine) CheckIPThrottle(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.checkGuard(ctx, e.ipGuard, "ip:"+clientIPOrUnknown(ctx), "", MetricIPRateLimited, EventIPRateLimited)
}

func (e *Engine) checkGuard(ctx context.Context, g *guard.Guard, key, userID string, metric MetricID, event string) error {
	err := g.Check(ctx, key)
	if err == nil {
		return nil
	}

	var limited *guard.LimitError
	if !errors.As(err, &limited) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	message := ""
	if limited.Escalated {
		message = fmt.Sprintf("Limit reached. You are now blocked for %s.", penalty.FormatTime(limited.TimeLeft))
	} else {
		message = fmt.Sprintf("Too many attempts. Blocked for another %s.", penalty.FormatTime(limited.TimeLeft))
	}

	e.metrics.Inc(metric)
	e.emitAudit(ctx, event, false, userID, "", clientIPFromContext(ctx), limited)

	return &ThrottleError{
		RetryAfter: limited.TimeLeft,
		Message:    message,
	}
}

// clientIPOrUnknown keys by a fixed bucket when no address was attached, so
// a misconfigured caller degrades to one shared budget instead of none.
func clientIPOrUnknown(ctx context.Context) string {
	if ip := clientIPFromContext(ctx); ip != "" {
		return ip
	}
	return "unknown"
}
