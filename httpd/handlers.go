package httpd

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keuzekompas/kompasauth"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	// min/max on a string field validate its length.
	Code string `json:"code" validate:"required,numeric,min=6,max=10"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"message": msg})
}

func (s *Server) decodeValid(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return err
	}
	return s.validate.Struct(out)
}

// writeEngineError maps engine sentinels onto the HTTP surface. Infra
// failures share one generic 503 body; detail goes to the log only.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var throttled *kompasauth.ThrottleError
	switch {
	case errors.As(err, &throttled):
		writeErr(w, http.StatusTooManyRequests, throttled.Message)
	case errors.Is(err, kompasauth.ErrInvalidCredentials):
		writeErr(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, kompasauth.ErrSessionExpired):
		writeErr(w, http.StatusUnauthorized, "Session expired or invalid")
	case errors.Is(err, kompasauth.ErrInvalidCode):
		writeErr(w, http.StatusUnauthorized, "Invalid or expired 2FA code")
	case errors.Is(err, kompasauth.ErrTokenInvalid):
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
	default:
		s.logger.Printf("[httpd] %s %s: %v", r.Method, r.URL.Path, err)
		writeErr(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	}
}

// POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := s.decodeValid(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// The throttle key comes from the submitted email, not from anything
	// authenticated; that is the point, it budgets guesses per account.
	if err := s.engine.CheckLoginThrottle(r.Context(), in.Email); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	result, err := s.engine.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	// Tokens go out in the body as well as the cookie: not every caller
	// is a cookie-capable browser.
	if result.TwoFactorRequired {
		s.setPendingCookie(w, result.PendingToken)
		writeJSON(w, http.StatusOK, map[string]any{
			"requires2FA": true,
			"tempToken":   result.PendingToken,
		})
		return
	}

	s.setSessionCookie(w, result.SessionToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  result.User,
		"token": result.SessionToken,
	})
}

// POST /auth/verify-2fa
func (s *Server) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	pending := cookieValue(r, pendingCookieName)

	if err := s.engine.CheckVerifyThrottle(r.Context(), pending); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	var in verifyRequest
	if err := s.decodeValid(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.engine.VerifyTwoFactor(r.Context(), pending, in.Code)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.clearPendingCookie(w)
	s.setSessionCookie(w, result.SessionToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  result.User,
		"token": result.SessionToken,
	})
}

// POST /auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.engine.Logout(r.Context(), cookieValue(r, sessionCookieName))
	s.clearSessionCookie(w)
	s.clearPendingCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

// GET /auth/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	claims, err := s.engine.VerifySession(cookieValue(r, sessionCookieName))
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": kompasauth.UserInfo{
			ID:    claims.UserID,
			Name:  claims.Name,
			Email: claims.Email,
		},
	})
}

// GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, "degraded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
