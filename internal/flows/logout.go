package flows

import (
	"context"

	"github.com/keuzekompas/kompasauth/token"
)

// LogoutDeps captures logout flow dependencies. Tokens are stateless so
// logout has no server-side effect beyond observability.
type LogoutDeps struct {
	ClientIPFromContext func(context.Context) string
	ParseSession        func(string) (*token.Claims, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, eventType string, success bool, userID, email, ip string, failure error)

	Metric int
	Event  string
}

// RunLogout records a logout for observability. The session token, when
// present and valid, attributes the event to a user; an absent or invalid
// token still counts as a logout because the cookies get cleared either way.
func RunLogout(ctx context.Context, sessionToken string, deps LogoutDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}

	ip := deps.ClientIPFromContext(ctx)

	userID := ""
	if sessionToken != "" && deps.ParseSession != nil {
		if claims, err := deps.ParseSession(sessionToken); err == nil {
			userID = claims.UserID
		}
	}

	deps.MetricInc(deps.Metric)
	deps.EmitAudit(ctx, deps.Event, true, userID, "", ip, nil)
}
