package kompasauth

import "errors"

var (
	// ErrInvalidCredentials is returned for a wrong email or password. The
	// message never distinguishes an unknown account from a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound is the credential-store sentinel for a missing
	// account. It never escapes the engine; callers see
	// [ErrInvalidCredentials].
	ErrUserNotFound = errors.New("user not found")
	// ErrRateLimited is matched (via errors.Is) by every throttle denial.
	// The concrete error is a [ThrottleError] carrying the remaining time.
	ErrRateLimited = errors.New("rate limited")
	// ErrSessionExpired is returned when the pending-2FA token is missing,
	// invalid, expired, or of the wrong kind.
	ErrSessionExpired = errors.New("session expired or invalid")
	// ErrInvalidCode is returned for a wrong, expired, or never-issued 2FA
	// code; the three cases are deliberately indistinguishable.
	ErrInvalidCode = errors.New("invalid or expired 2fa code")
	// ErrTokenInvalid is returned for an invalid or expired session token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrStoreUnavailable wraps Redis and credential-store outages.
	ErrStoreUnavailable = errors.New("auth backend unavailable")
	// ErrMailUnavailable wraps 2FA code delivery failures.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
