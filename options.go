package mse

import "log/slog"

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	notifyURL       string
	logger          *slog.Logger
	version         string
	judge           Judge
	subject         Subject
	eventHooks      []EventHook
	routeRegistrars []RouteRegistrar
	middlewares     []Middleware
}

// WithPort overrides the TCP port from config (MSE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the pooled database connection string
// (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY
// run-completion fanout (NOTIFY_URL env var). Set this when DATABASE_URL
// points at a connection pooler — LISTEN/NOTIFY requires a direct
// (non-pooled) connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithLogger sets the structured logger for the Engine. If not set, the
// default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported on GET /health and in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithJudge replaces the primary rationale scorer. The built-in
// HeuristicJudge always remains available as the fallback when the
// supplied Judge errors or exceeds its deadline — see the JudgeTimeout
// setting in internal/config (MSE_JUDGE_TIMEOUT env var).
func WithJudge(j Judge) Option {
	return func(o *resolvedOptions) { o.judge = j }
}

// WithSubject replaces the identity default for opaque-agent-identifier
// resolution.
func WithSubject(s Subject) Option {
	return func(o *resolvedOptions) { o.subject = s }
}

// WithEventHook registers an event hook to receive run-lifecycle
// notifications. Multiple hooks may be registered; all registered hooks
// receive every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration
// order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware. Multiple
// middlewares are applied in registration order (the first-registered
// middleware is outermost, called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
