package httpd

import (
	"net/http"
	"time"
)

// Cookie names match what the KeuzeKompas frontend expects.
const (
	sessionCookieName = "token"
	pendingCookieName = "temp_token"
)

// cookie builds an auth cookie with the fixed attribute set. Set and clear
// MUST use identical attributes or browsers treat them as different cookies
// and the stale one lingers.
func (s *Server) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.config.SecureCookies,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge / time.Second)
	}
	return c
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.cookie(sessionCookieName, token, s.config.SessionCookieTTL))
}

func (s *Server) setPendingCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.cookie(pendingCookieName, token, s.config.PendingCookieTTL))
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(sessionCookieName, "", 0))
}

func (s *Server) clearPendingCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(pendingCookieName, "", 0))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
