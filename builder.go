package kompasauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/keuzekompas/kompasauth/internal/flows"
	"github.com/keuzekompas/kompasauth/internal/guard"
	"github.com/keuzekompas/kompasauth/internal/penalty"
	"github.com/keuzekompas/kompasauth/internal/rate"
	"github.com/keuzekompas/kompasauth/internal/twofactor"
	"github.com/keuzekompas/kompasauth/password"
	"github.com/keuzekompas/kompasauth/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until the first Engine method call.
type Builder struct {
	config      Config
	redis       redis.UniversalClient
	credentials CredentialStore
	mailer      Mailer
	auditSink   AuditSink

	built bool
}

// New returns a [Builder] preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared store client. The same Redis backs penalties,
// rate windows, 2FA challenges, and mail cooldowns, and must be shared by
// every server instance.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the account lookup collaborator.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithMailer sets the 2FA code delivery collaborator.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink sets the audit event receiver. Nil with auditing enabled
// falls back to [NoOpSink].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	penalties := penalty.New(b.redis, penalty.Config{
		Schedule: cfg.Penalty.Schedule,
		LevelTTL: cfg.Penalty.LevelTTL,
	})
	limiter := rate.New(b.redis)

	challenges := twofactor.NewStore(b.redis, twofactor.Config{
		CodeDigits:   cfg.TwoFactor.CodeDigits,
		CodeTTL:      cfg.TwoFactor.CodeTTL,
		SendCooldown: cfg.TwoFactor.SendCooldown,
	})

	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		SessionTTL: cfg.JWT.SessionTTL,
		PendingTTL: cfg.JWT.PendingTTL,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		penalties:  penalties,
		limiter:    limiter,
		challenges: challenges,
		tokens:     tokens,
		passwords:  password.NewVerifier(cfg.Password.Cost),
		loginGuard: guard.New(penalties, limiter, rate.Window{
			Name:   "login",
			Limit:  cfg.RateLimit.Login.Limit,
			Period: cfg.RateLimit.Login.Period,
		}),
		verifyGuard: guard.New(penalties, limiter, rate.Window{
			Name:   "verify2fa",
			Limit:  cfg.RateLimit.Verify.Limit,
			Period: cfg.RateLimit.Verify.Period,
		}),
		ipGuard: guard.New(penalties, limiter,
			rate.Window{
				Name:   "ip",
				Limit:  cfg.RateLimit.IPBurst.Limit,
				Period: cfg.RateLimit.IPBurst.Period,
			},
			rate.Window{
				Name:   "ip-long",
				Limit:  cfg.RateLimit.IPSustained.Limit,
				Period: cfg.RateLimit.IPSustained.Period,
			},
		),
		credentials: b.credentials,
		mailer:      b.mailer,
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
	}
	engine.flows = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}

// flowDeps binds the engine's stores and collaborators into the flow
// dependency structs, wrapping backend failures into the root sentinels so
// the flows stay free of store-specific error types.
func (e *Engine) flowDeps() flows.Deps {
	findByEmail := func(ctx context.Context, email string) (flows.UserRecord, error) {
		user, err := e.credentials.FindByEmail(ctx, email)
		if err != nil {
			return flows.UserRecord{}, err
		}
		return flowUser(user), nil
	}
	findByID := func(ctx context.Context, id string) (flows.UserRecord, error) {
		user, err := e.credentials.FindByID(ctx, id)
		if err != nil {
			return flows.UserRecord{}, err
		}
		return flowUser(user), nil
	}
	resetPenalty := func(ctx context.Context, key string) error {
		if err := e.penalties.ResetPenalty(ctx, key); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}
	metricInc := func(id int) {
		e.metrics.Inc(MetricID(id))
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			ClientIPFromContext: clientIPFromContext,
			FindByEmail:         findByEmail,
			VerifyPassword: func(hash, candidate string) (bool, error) {
				match, err := e.passwords.Verify(hash, candidate)
				if err != nil {
					return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
				return match, nil
			},
			VerifyDummy: func(candidate string) {
				e.passwords.VerifyDummy(candidate)
			},
			ResetPenalty: resetPenalty,
			IssueCode: func(ctx context.Context, userID string) (string, error) {
				code, err := e.challenges.Issue(ctx, userID)
				if err != nil {
					return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
				return code, nil
			},
			AcquireSendCooldown: func(ctx context.Context, email string) (bool, error) {
				ok, err := e.challenges.AcquireSendCooldown(ctx, email)
				if err != nil {
					return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
				return ok, nil
			},
			ReleaseSendCooldown: func(ctx context.Context, email string) error {
				return e.challenges.ReleaseSendCooldown(ctx, email)
			},
			SendCode:     e.mailer.SendTwoFactorCode,
			IssuePending: e.tokens.IssuePending,
			IssueSession: e.tokens.IssueSession,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Metrics: flows.LoginMetrics{
				Success:           int(MetricLoginSuccess),
				Failure:           int(MetricLoginFailure),
				TwoFactorRequired: int(MetricTwoFactorRequired),
			},
			Events: flows.LoginEvents{
				Success:       EventLoginSuccess,
				Failure:       EventLoginFailure,
				ChallengeSent: EventTwoFactorChallenge,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				UserNotFound:       ErrUserNotFound,
				MailUnavailable:    ErrMailUnavailable,
			},
		},
		Verify: flows.VerifyDeps{
			ClientIPFromContext: clientIPFromContext,
			ParsePending:        e.tokens.ParsePending,
			VerifyCode:          e.challenges.Verify,
			MapCodeError: func(err error) error {
				if errors.Is(err, twofactor.ErrCodeInvalid) {
					return ErrInvalidCode
				}
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			},
			FindByID:     findByID,
			ResetPenalty: resetPenalty,
			IssueSession: e.tokens.IssueSession,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Metrics: flows.VerifyMetrics{
				Success: int(MetricTwoFactorSuccess),
				Failure: int(MetricTwoFactorFailure),
			},
			Events: flows.VerifyEvents{
				Success: EventTwoFactorSuccess,
				Failure: EventTwoFactorFailure,
			},
			Errors: flows.VerifyErrors{
				EngineNotReady: ErrEngineNotReady,
				SessionExpired: ErrSessionExpired,
				InvalidCode:    ErrInvalidCode,
				UserNotFound:   ErrUserNotFound,
			},
		},
		Logout: flows.LogoutDeps{
			ClientIPFromContext: clientIPFromContext,
			ParseSession:        e.tokens.ParseSession,
			MetricInc:           metricInc,
			EmitAudit:           e.emitAudit,
			Metric:              int(MetricLogout),
			Event:               EventLogout,
		},
	}
}

func flowUser(user UserRecord) flows.UserRecord {
	return flows.UserRecord{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		PasswordHash:     user.PasswordHash,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}
