package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/itx/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the route patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "[METHOD ]path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Deps are the collaborators of the HTTP service.
type Deps struct {
	Engines EngineFactory
	Auth    AuthProvider
	Metrics *Metrics
	Login   *LoginHandler // nil disables the /auth routes
	Logger  *log.Logger
}

// Server is the migration HTTP service.
type Server struct {
	config shared.ServerConfig
	logger *log.Logger
	router *BasicRouter
	server *http.Server
}

// New wires the routes of the service.
func New(config shared.ServerConfig, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(os.Stderr)
	}
	if deps.Auth == nil {
		deps.Auth = CookieAuth{}
	}

	router := NewBasicRouter()
	router.Use(Recover(deps.Logger), Logging(deps.Logger), CORS(config.AllowedOrigins))

	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "pong")
	}))
	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "itx"})
	}))
	router.Handle(http.MethodGet, "/metrics", deps.Metrics.Handler())
	router.Handler(NewImportHandler(deps.Engines, deps.Auth, deps.Metrics, deps.Logger))
	if deps.Login != nil {
		router.Handler(deps.Login)
	}

	return &Server{
		config: config,
		logger: deps.Logger,
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ServeHTTP serves a request through the full middleware stack.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start listens until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down HTTP server gracefully", "error", err)
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
