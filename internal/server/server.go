// Package server implements the HTTP API surface for the Moral
// Spectrometry Engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/veritas-labs/mse/internal/auth"
	"github.com/veritas-labs/mse/internal/session"
	"github.com/veritas-labs/mse/internal/storage"
)

// apiPrefix is where the REST surface is mounted.
const apiPrefix = "/api/v1/mse"

// Server is the MSE HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler, for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	DB        *storage.DB
	JWTMgr    *auth.JWTManager
	AdminAuth *auth.AdminAuthenticator
	Session   *session.Context
	Logger    *slog.Logger
	MCPServer *mcpserver.MCPServer // optional; nil disables the /mcp transport
	Subjects  SubjectResolver      // optional; defaults to identity
	Hooks     []SnapshotHook       // optional

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string

	ExtraRoutes func(mux *http.ServeMux, subjectRole, adminRole func(http.Handler) http.Handler)
	Middlewares []func(http.Handler) http.Handler // applied outermost, registration order
}

// New wires the full middleware chain and route table.
func New(cfg Config) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		Session:             cfg.Session,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		JWTMgr:              cfg.JWTMgr,
		AdminAuth:           cfg.AdminAuth,
		Subjects:            cfg.Subjects,
		Hooks:               cfg.Hooks,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST "+apiPrefix+"/auth/token", h.HandleIssueToken)

	subjectRole := requireRole(auth.RoleSubject)

	mux.Handle("POST "+apiPrefix+"/evaluations", subjectRole(http.HandlerFunc(h.HandleCreateRun)))
	mux.Handle("GET "+apiPrefix+"/evaluations/{run_id}/next", subjectRole(http.HandlerFunc(h.HandleNextItem)))
	mux.Handle("POST "+apiPrefix+"/evaluations/{run_id}/responses", subjectRole(http.HandlerFunc(h.HandleSubmitResponse)))
	mux.Handle("GET "+apiPrefix+"/evaluations/{run_id}", subjectRole(http.HandlerFunc(h.HandleGetRun)))

	mux.Handle("GET "+apiPrefix+"/profiles/{agent_id}", subjectRole(http.HandlerFunc(h.HandleGetProfile)))
	mux.Handle("GET "+apiPrefix+"/profiles/{agent_id}/history", subjectRole(http.HandlerFunc(h.HandleProfileHistory)))

	mux.Handle("GET "+apiPrefix+"/axes", subjectRole(http.HandlerFunc(h.HandleListAxes)))
	mux.Handle("GET "+apiPrefix+"/axes/{id}", subjectRole(http.HandlerFunc(h.HandleGetAxis)))

	adminRole := requireRole(auth.RoleAdmin)
	mux.Handle("GET "+apiPrefix+"/compare", adminRole(http.HandlerFunc(h.HandleCompare)))
	mux.Handle("GET "+apiPrefix+"/ratings/leaderboard", adminRole(http.HandlerFunc(h.HandleLeaderboard)))

	mux.Handle("GET "+apiPrefix+"/versions", subjectRole(http.HandlerFunc(h.HandleListVersions)))
	mux.Handle("GET "+apiPrefix+"/versions/{code}", subjectRole(http.HandlerFunc(h.HandleGetVersion)))

	// MCP StreamableHTTP transport (auth required, subject+).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", subjectRole(mcpHTTP))
	}

	if cfg.ExtraRoutes != nil {
		cfg.ExtraRoutes(mux, subjectRole, adminRole)
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → CORS → logging → recovery → auth → handler.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  2 * cfg.ReadTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
