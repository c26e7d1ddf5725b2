package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/veritas-labs/mse/internal/auth"
	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/session"
	"github.com/veritas-labs/mse/internal/storage"
)

// SubjectResolver translates an opaque agent identifier supplied by a
// caller (POST /evaluations' agent_id, or the {agent_id} path params on
// the profile/compare routes) into the canonical subject id runs and
// snapshots are stored under. Set by an embedding application that needs
// identity federation; defaults to the identity function.
type SubjectResolver interface {
	Resolve(ctx context.Context, opaqueID string) (string, error)
}

type identityResolver struct{}

func (identityResolver) Resolve(_ context.Context, opaqueID string) (string, error) {
	return opaqueID, nil
}

// SnapshotHook is invoked, best-effort and in its own goroutine, whenever
// a response submission completes or flags a run. Errors are logged by
// the caller, never surfaced to the HTTP client.
type SnapshotHook interface {
	OnRunCompleted(ctx context.Context, snapshot model.Snapshot) error
	OnGamingFlagged(ctx context.Context, runID string, score float64) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	session             *session.Context
	logger              *slog.Logger
	version             string
	maxRequestBodyBytes int64
	startedAt           time.Time
	jwtMgr              *auth.JWTManager
	adminAuth           *auth.AdminAuthenticator
	subjects            SubjectResolver
	hooks               []SnapshotHook
}

// HandlersDeps bundles Handlers' constructor dependencies.
type HandlersDeps struct {
	DB                  *storage.DB
	Session             *session.Context
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	JWTMgr              *auth.JWTManager
	AdminAuth           *auth.AdminAuthenticator
	Subjects            SubjectResolver // optional; defaults to identity
	Hooks               []SnapshotHook  // optional
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(deps HandlersDeps) *Handlers {
	maxBytes := deps.MaxRequestBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	subjects := deps.Subjects
	if subjects == nil {
		subjects = identityResolver{}
	}
	return &Handlers{
		db:                  deps.DB,
		session:             deps.Session,
		logger:              deps.Logger,
		version:             deps.Version,
		maxRequestBodyBytes: maxBytes,
		startedAt:           time.Now(),
		jwtMgr:              deps.JWTMgr,
		adminAuth:           deps.AdminAuth,
		subjects:            subjects,
		hooks:               deps.Hooks,
	}
}

// resolveSubject runs the configured SubjectResolver, falling back to the
// opaque id unchanged if no resolver overrides it.
func (h *Handlers) resolveSubject(ctx context.Context, opaqueID string) (string, error) {
	return h.subjects.Resolve(ctx, opaqueID)
}

// resolvePathSubject resolves a path-carried agent id and authorizes the
// caller against the resolved subject id, writing the response and
// returning ok=false on any failure.
func (h *Handlers) resolvePathSubject(w http.ResponseWriter, r *http.Request, opaqueID string) (string, bool) {
	subjectID, err := h.resolveSubject(r.Context(), opaqueID)
	if err != nil {
		h.writeInternalError(w, r, "failed to resolve subject", err)
		return "", false
	}
	if !authorizeSubject(w, r, subjectID) {
		return "", false
	}
	return subjectID, true
}

// fireHooks runs every registered SnapshotHook in its own goroutine. A run
// that completed normally fires OnRunCompleted; a run that finished
// flagged for gaming additionally fires OnGamingFlagged.
func (h *Handlers) fireHooks(snap model.Snapshot) {
	for _, hook := range h.hooks {
		hook := hook
		go func() {
			ctx := context.Background()
			if err := hook.OnRunCompleted(ctx, snap); err != nil {
				h.logger.Warn("snapshot hook OnRunCompleted failed", "error", err, "run_id", snap.RunID)
			}
			if snap.Gaming.Flagged {
				if err := hook.OnGamingFlagged(ctx, snap.RunID, snap.Gaming.Score); err != nil {
					h.logger.Warn("snapshot hook OnGamingFlagged failed", "error", err, "run_id", snap.RunID)
				}
			}
		}()
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternal, "storage unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    h.version,
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
	})
}

// authorizeSubject enforces that the caller is either subjectID itself or
// an admin, writing a 403 and returning false otherwise.
func authorizeSubject(w http.ResponseWriter, r *http.Request, subjectID string) bool {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return false
	}
	if auth.AtLeast(claims.Role, auth.RoleAdmin) || claims.SubjectID == subjectID {
		return true
	}
	writeError(w, r, http.StatusForbidden, model.ErrCodeUnauthorized, "cannot access another subject's resource")
	return false
}

// parseLimit reads a "limit" query parameter, clamping to [1, max] with
// def as the default when absent or invalid.
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
