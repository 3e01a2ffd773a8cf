package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// Handler builds the HTTP router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get(s.wsCfg.Path, s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeNotFound(w, "no such endpoint")
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.With(s.loginLimiter()).Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/logout", s.handleLogout)
			r.Put("/profile", s.handleUpdateProfile)
		})

		r.Get("/preferences/theme", s.handleGetTheme)
		r.Put("/preferences/theme", s.handleSetTheme)
	})

	// Page routes
	r.Group(func(r chi.Router) {
		r.Use(s.gateMiddleware)
		r.Get("/*", s.handlePage)
	})

	return r
}

// loginLimiter rate limits login attempts per client IP.
func (s *Server) loginLimiter() func(http.Handler) http.Handler {
	rl := s.cfg.LoginRateLimit
	if !rl.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		rl.Requests,
		time.Duration(rl.Window)*time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many login attempts, try again later")
		}),
	)
}
