package kompasauth

import (
	"context"
	"time"

	internalaudit "github.com/keuzekompas/kompasauth/internal/audit"
)

// Audit event types emitted by the engine.
const (
	EventLoginSuccess         = "login.success"
	EventLoginFailure         = "login.failure"
	EventLoginRateLimited     = "login.rate_limited"
	EventTwoFactorChallenge   = "2fa.challenge_sent"
	EventTwoFactorSuccess     = "2fa.success"
	EventTwoFactorFailure     = "2fa.failure"
	EventTwoFactorRateLimited = "2fa.rate_limited"
	EventIPRateLimited        = "ip.rate_limited"
	EventLogout               = "logout"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, email, ip string, failure error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        ip,
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	e.audit.Emit(ctx, event)
}
