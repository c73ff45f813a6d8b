package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.FindByEmail != nil
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) VerifyTwoFactor(ctx context.Context, pendingToken, code string) (*VerifyResult, error) {
	return RunVerifyTwoFactor(ctx, pendingToken, code, s.deps.Verify)
}

func (s Service) Logout(ctx context.Context, sessionToken string) {
	RunLogout(ctx, sessionToken, s.deps.Logout)
}
