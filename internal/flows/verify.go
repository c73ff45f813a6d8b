package flows

import (
	"context"
	"errors"

	"github.com/keuzekompas/kompasauth/token"
)

// VerifyResult is the flow-local 2FA confirmation response shape.
type VerifyResult struct {
	SessionToken string
	User         UserRecord
}

// VerifyMetrics carries metric IDs needed by the verify flow.
type VerifyMetrics struct {
	Success int
	Failure int
}

// VerifyEvents carries audit event names used by the verify flow.
type VerifyEvents struct {
	Success string
	Failure string
}

// VerifyErrors carries host-level sentinel errors used by the verify flow.
type VerifyErrors struct {
	EngineNotReady error
	SessionExpired error
	InvalidCode    error
	UserNotFound   error
}

// VerifyDeps captures 2FA verification flow dependencies.
type VerifyDeps struct {
	ClientIPFromContext func(context.Context) string

	ParsePending func(string) (*token.Claims, error)
	VerifyCode   func(context.Context, string, string) error
	MapCodeError func(error) error

	FindByID     func(context.Context, string) (UserRecord, error)
	ResetPenalty func(context.Context, string) error
	IssueSession func(userID, name, email string) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, eventType string, success bool, userID, email, ip string, failure error)

	Metrics VerifyMetrics
	Events  VerifyEvents
	Errors  VerifyErrors
}

// RunVerifyTwoFactor executes the 2FA confirmation stage. The pending token
// signature is verified here (the guard only decoded it), the temp marker
// is enforced, and the submitted code is checked and consumed. Success
// clears the ip:, account:, and verify2fa: penalty dimensions and issues a
// full session token. Failure resets nothing; the guard layer escalates on
// repeats.
func RunVerifyTwoFactor(ctx context.Context, pendingToken, code string, deps VerifyDeps) (*VerifyResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MapCodeError == nil {
		deps.MapCodeError = func(err error) error { return err }
	}
	if deps.ParsePending == nil ||
		deps.VerifyCode == nil ||
		deps.FindByID == nil ||
		deps.ResetPenalty == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if pendingToken == "" {
		return nil, deps.Errors.SessionExpired
	}
	claims, err := deps.ParsePending(pendingToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", "", ip, deps.Errors.SessionExpired)
		return nil, deps.Errors.SessionExpired
	}

	if err := deps.VerifyCode(ctx, claims.UserID, code); err != nil {
		mapped := deps.MapCodeError(err)
		if errors.Is(mapped, deps.Errors.InvalidCode) {
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Failure, false, claims.UserID, "", ip, mapped)
		}
		return nil, mapped
	}

	user, err := deps.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			// Account disappeared between the password stage and now.
			return nil, deps.Errors.SessionExpired
		}
		return nil, err
	}

	email := NormalizeEmail(user.Email)
	if ip != "" {
		if err := deps.ResetPenalty(ctx, "ip:"+ip); err != nil {
			return nil, err
		}
	}
	if err := deps.ResetPenalty(ctx, "account:"+email); err != nil {
		return nil, err
	}
	if err := deps.ResetPenalty(ctx, "verify2fa:"+user.ID); err != nil {
		return nil, err
	}

	session, err := deps.IssueSession(user.ID, user.Name, user.Email)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, email, ip, nil)

	return &VerifyResult{SessionToken: session, User: user}, nil
}
