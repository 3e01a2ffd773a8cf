package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/credstore"
	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Sessions is the session lifecycle the server exposes.
// *session.Manager satisfies it.
type Sessions interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (cancel func())
	Login(ctx context.Context, email, password string) (session.Snapshot, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (session.Snapshot, error)
	Logout() session.Snapshot
	UpdateProfile(ctx context.Context, update authclient.ProfileUpdate) (session.Snapshot, error)
}

// RedirectFunc is told about every navigation the gate issues.
type RedirectFunc func(d gate.Decision, from string)

// Deps holds the dependencies required by the web server.
type Deps struct {
	Config     config.WebConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Sessions   Sessions
	Gate       gate.Table
	Store      credstore.Store
	OnRedirect RedirectFunc // optional
	Version    string
}

// Server is the local HTTP server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.WebConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	sessions   Sessions
	table      gate.Table
	store      credstore.Store
	onRedirect RedirectFunc
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
	unsub      func()
}

// New creates a new web server with the given dependencies.
//
// The gate table is validated here so a table that could bounce a client
// between two rules never serves a request.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if err := deps.Gate.Validate(); err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}

	wsCfg := withWSDefaults(deps.WS)
	s := &Server{
		cfg:        deps.Config,
		wsCfg:      wsCfg,
		logger:     deps.Logger,
		sessions:   deps.Sessions,
		table:      deps.Gate,
		store:      deps.Store,
		onRedirect: deps.OnRedirect,
		version:    deps.Version,
	}
	s.hub = NewHub(wsCfg, deps.Logger, deps.Gate, deps.Sessions.Snapshot, s.redirected)
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays session changes to connected clients
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.unsub = s.sessions.Subscribe(s.hub.SessionChanged)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("web server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the web server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.unsub != nil {
		s.unsub()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// HealthCheck reports whether the server is listening.
func (s *Server) HealthCheck(_ context.Context) error {
	if s.server == nil {
		return fmt.Errorf("web server not started")
	}
	return nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// redirected logs a gate navigation and forwards it to OnRedirect.
func (s *Server) redirected(d gate.Decision, from string) {
	s.logger.Debug("access gate redirect",
		"rule", string(d.Rule),
		"from", from,
		"to", d.Target,
	)
	if s.onRedirect != nil {
		s.onRedirect(d, from)
	}
}
