package httpd

import (
	"net"
	"net/http"
	"strings"

	"github.com/keuzekompas/kompasauth"
)

// clientIP resolves the caller address: the first X-Forwarded-For entry when
// a proxy set one, otherwise the connection's remote address. Deployments
// without a trusted proxy must strip inbound X-Forwarded-For at the edge,
// otherwise clients choose their own ip: throttle bucket. The account and
// verify2fa budgets do not depend on it either way.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientIPMiddleware threads the resolved address into the request context
// so the engine can key penalties and audit events by it.
func (s *Server) clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kompasauth.WithClientIP(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ipThrottled enforces the coarse per-address Redis guard before the
// handler runs. Must sit inside clientIPMiddleware.
func (s *Server) ipThrottled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.engine.CheckIPThrottle(r.Context()); err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
