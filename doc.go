// Package kompasauth is the authentication core of the KeuzeKompas module
// catalog backend: credential verification, email two-factor challenges,
// JWT session issuance, and a Redis-backed progressive penalty system that
// defends the login and 2FA endpoints against brute force and credential
// stuffing.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// kompasauth is the public surface. It exposes [Engine], [Builder],
// [Config], the collaborator interfaces ([CredentialStore], [Mailer]), and
// value types. All internal coordination (flow orchestration, penalty
// bookkeeping, fixed-window counting, challenge storage, audit dispatch)
// lives under internal/ and is never exported directly.
//
// The HTTP boundary (routing, cookies, request validation, per-route
// throttle key derivation) lives in the httpd package; the runnable server
// in cmd/kompasauth-server.
//
// # Failure policy
//
// Throttling fails closed: if the penalty store is unreachable, guarded
// requests are denied, never waved through. Domain failures surface as the
// sentinel errors in errors.go; backend failures wrap
// [ErrStoreUnavailable] or [ErrMailUnavailable].
package kompasauth
