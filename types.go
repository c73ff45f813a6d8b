package kompasauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/keuzekompas/kompasauth/internal/audit"
	"github.com/keuzekompas/kompasauth/internal/penalty"
)

// UserRecord is the credential record this subsystem consumes. It is
// immutable from the engine's perspective; there is no password-change or
// account-management flow here.
type UserRecord struct {
	ID               string
	Email            string // unique, normalized lowercase
	Name             string
	PasswordHash     string // bcrypt
	TwoFactorEnabled bool
}

// CredentialStore is the collaborator interface over the account database.
// FindByEmail receives an already-normalized (lowercased, trimmed) address.
// Both lookups return [ErrUserNotFound] for missing accounts and wrap any
// backend failure in [ErrStoreUnavailable].
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, id string) (UserRecord, error)
}

// Mailer delivers a 2FA code to an address. Implementations live outside
// the engine; mail.SMTPMailer and mail.LogMailer are provided.
type Mailer interface {
	SendTwoFactorCode(ctx context.Context, email, code string) error
}

// UserInfo is the client-facing user shape in login responses.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// LoginResult is returned by [Engine.Login]. Either TwoFactorRequired is
// set with a pending token, or SessionToken carries a full session.
type LoginResult struct {
	TwoFactorRequired bool
	PendingToken      string
	SessionToken      string
	User              UserInfo
}

// VerifyResult is returned by [Engine.VerifyTwoFactor].
type VerifyResult struct {
	SessionToken string
	User         UserInfo
}

// ThrottleError is the concrete error behind every guard denial. It
// unwraps to [ErrRateLimited]; RetryAfter is the remaining block time.
type ThrottleError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *ThrottleError) Error() string { return e.Message }

func (e *ThrottleError) Unwrap() error { return ErrRateLimited }

// BlockStatus re-exports the penalty block state for introspection.
type BlockStatus = penalty.BlockStatus

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
