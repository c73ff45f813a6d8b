package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserRecord is the flow-local credential record shape.
type UserRecord struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	TwoFactorEnabled bool
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	TwoFactorRequired bool
	PendingToken      string
	SessionToken      string
	User              UserRecord
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	Success           int
	Failure           int
	TwoFactorRequired int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success       string
	Failure       string
	ChallengeSent string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	UserNotFound       error
	MailUnavailable    error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string

	FindByEmail    func(context.Context, string) (UserRecord, error)
	VerifyPassword func(hash, candidate string) (bool, error)
	VerifyDummy    func(candidate string)

	ResetPenalty func(context.Context, string) error

	IssueCode           func(context.Context, string) (string, error)
	AcquireSendCooldown func(context.Context, string) (bool, error)
	ReleaseSendCooldown func(context.Context, string) error
	SendCode            func(context.Context, string, string) error

	IssuePending func(userID string) (string, error)
	IssueSession func(userID, name, email string) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, eventType string, success bool, userID, email, ip string, failure error)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// NormalizeEmail lowercases and trims an account identifier. Every
// account-keyed code path must go through this so penalty keys, lookups,
// and cooldown markers agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RunLogin executes the password stage of the login protocol. The throttle
// guard has already admitted the request by the time this runs.
//
// On credential success it clears the ip: and account: penalty dimensions;
// any further friction comes from the 2FA dimension only. For accounts
// without 2FA it issues a session token directly; otherwise it issues and
// mails a one-time code and returns a pending-2FA token.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.FindByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.VerifyDummy == nil ||
		deps.ResetPenalty == nil ||
		deps.IssueCode == nil ||
		deps.SendCode == nil ||
		deps.IssuePending == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	ip := deps.ClientIPFromContext(ctx)

	user, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			// Burn one hash comparison so this path costs the same as a
			// wrong password for an existing account.
			deps.VerifyDummy(password)
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Failure, false, "", email, ip, deps.Errors.InvalidCredentials)
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, err
	}

	match, err := deps.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !match {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, email, ip, deps.Errors.InvalidCredentials)
		return nil, deps.Errors.InvalidCredentials
	}

	// Credentials are correct: clear the password-guessing dimensions.
	if ip != "" {
		if err := deps.ResetPenalty(ctx, "ip:"+ip); err != nil {
			return nil, err
		}
	}
	if err := deps.ResetPenalty(ctx, "account:"+email); err != nil {
		return nil, err
	}

	if !user.TwoFactorEnabled {
		session, err := deps.IssueSession(user.ID, user.Name, user.Email)
		if err != nil {
			return nil, err
		}
		deps.MetricInc(deps.Metrics.Success)
		deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, email, ip, nil)
		return &LoginResult{SessionToken: session, User: user}, nil
	}

	code, err := deps.IssueCode(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := deliverCode(ctx, email, code, deps); err != nil {
		return nil, err
	}

	pending, err := deps.IssuePending(user.ID)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.TwoFactorRequired)
	deps.EmitAudit(ctx, deps.Events.ChallengeSent, true, user.ID, email, ip, nil)

	return &LoginResult{
		TwoFactorRequired: true,
		PendingToken:      pending,
		User:              user,
	}, nil
}

// deliverCode sends the one-time code under the per-address cooldown. A
// held cooldown skips delivery silently (the previous mail is still in
// flight); a delivery failure releases the marker so the user can retry,
// then propagates as an infrastructure error since login cannot complete
// without the code.
func deliverCode(ctx context.Context, email, code string, deps LoginDeps) error {
	if deps.AcquireSendCooldown != nil {
		acquired, err := deps.AcquireSendCooldown(ctx, email)
		if err != nil {
			return err
		}
		if !acquired {
			return nil
		}
	}

	if err := deps.SendCode(ctx, email, code); err != nil {
		if deps.ReleaseSendCooldown != nil {
			_ = deps.ReleaseSendCooldown(ctx, email)
		}
		return fmt.Errorf("%w: %v", deps.Errors.MailUnavailable, err)
	}
	return nil
}
