// Package httpd exposes the auth engine over HTTP: login, 2FA
// confirmation, logout, session introspection, and a health endpoint.
package httpd

import (
	"log"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/keuzekompas/kompasauth"
)

// Config holds the HTTP-layer settings.
type Config struct {
	// SecureCookies marks auth cookies Secure. Enable everywhere TLS
	// terminates in front of or at this server.
	SecureCookies bool

	// SessionCookieTTL and PendingCookieTTL bound the cookie lifetimes.
	// They should match the engine's token TTLs; zero selects 1h and 5m.
	SessionCookieTTL time.Duration
	PendingCookieTTL time.Duration

	// GlobalRPS caps requests per second per remote address before any
	// handler runs. This is the cheap in-process floodgate; the precise
	// per-account budgets live in the engine's Redis guards. Zero
	// disables it.
	GlobalRPS float64
}

// Server wires the engine into an HTTP router.
type Server struct {
	engine   *kompasauth.Engine
	config   Config
	validate *validator.Validate
	logger   *log.Logger
}

// NewServer creates a [Server]. A nil logger selects the standard logger.
func NewServer(engine *kompasauth.Engine, cfg Config, logger *log.Logger) *Server {
	if cfg.SessionCookieTTL <= 0 {
		cfg.SessionCookieTTL = time.Hour
	}
	if cfg.PendingCookieTTL <= 0 {
		cfg.PendingCookieTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		engine:   engine,
		config:   cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Router builds the route table. All auth routes pass through the client-IP
// middleware and, when configured, the global per-address floodgate.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.Use(s.clientIPMiddleware)
	if s.config.GlobalRPS > 0 {
		auth.Use(s.floodgate())
	}

	auth.Handle("/login", s.ipThrottled(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	auth.Handle("/verify-2fa", s.ipThrottled(http.HandlerFunc(s.handleVerifyTwoFactor))).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	return r
}

// floodgate is the tollbooth per-address request ceiling. It keys on the
// same forwarded-for-then-remote-addr order the engine guards use.
func (s *Server) floodgate() mux.MiddlewareFunc {
	lim := tollbooth.NewLimiter(s.config.GlobalRPS, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lim.SetIPLookups([]string{"X-Forwarded-For", "RemoteAddr"})
	lim.SetMessageContentType("application/json; charset=utf-8")
	lim.SetMessage(`{"message":"Too many requests."}`)

	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lim, next)
	}
}
