// Package mse is the embeddable SDK for the Moral Spectrometry Engine: a
// Postgres-backed service that administers adaptive moral-dilemma
// exams to AI agents, fits per-axis response-tendency curves, detects
// gaming, scores sophistication, and tracks a cross-axis Moral Rating.
//
// Construct an Engine with New, then call Run to serve the REST and MCP
// surfaces until its context is canceled.
package mse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/veritas-labs/mse/internal/auth"
	"github.com/veritas-labs/mse/internal/config"
	"github.com/veritas-labs/mse/internal/judge"
	"github.com/veritas-labs/mse/internal/mcpserver"
	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/server"
	"github.com/veritas-labs/mse/internal/session"
	"github.com/veritas-labs/mse/internal/storage"
	"github.com/veritas-labs/mse/internal/telemetry"
)

// Engine owns every collaborator the Moral Spectrometry Engine needs:
// storage, auth, the session orchestrator, the REST surface, and the
// optional MCP surface.
type Engine struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New builds an Engine from environment configuration and the supplied
// options, connecting to storage and initializing telemetry eagerly so
// that a returned error always means the Engine failed to come up
// cleanly — there is no partially-live instance to leak.
func New(opts ...Option) (*Engine, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load a .env file if present; harmless in production where none exists.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("mse: load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("mse: init telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("mse: connect storage: %w", err)
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("mse: init jwt manager: %w", err)
	}

	adminAuth, err := auth.NewAdminAuthenticator(cfg.AdminAPIKey)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("mse: init admin authenticator: %w", err)
	}

	// Judge chain: an external primary (HTTP, or the caller's own Judge)
	// always falls back to the built-in heuristic on error or timeout.
	var primary judge.Judge
	switch {
	case o.judge != nil:
		primary = &judgeAdapter{j: o.judge}
	case cfg.JudgeURL != "":
		primary = judge.NewHTTPJudge(cfg.JudgeURL)
	}
	var scorer judge.Judge
	if primary != nil {
		fb := judge.NewFallback(primary)
		fb.Timeout = cfg.JudgeTimeout
		scorer = fb
	} else {
		scorer = judge.NewHeuristicJudge()
	}

	sessionCtx := session.NewContext(db, scorer, logger, session.Options{
		DefaultItemsPerAxis: cfg.DefaultItemsPerAxis,
		DefaultEpsilon:      cfg.DefaultEpsilon,
		JudgeTimeout:        cfg.JudgeTimeout,
		BootstrapResamples:  cfg.BootstrapResamples,
		BootstrapBudget:     cfg.BootstrapBudget,
	})

	mcpSrv := mcpserver.New(sessionCtx, db, logger, version)

	var subjects server.SubjectResolver
	if o.subject != nil {
		subjects = &subjectAdapter{s: o.subject}
	}

	var hooks []server.SnapshotHook
	for _, h := range o.eventHooks {
		hooks = append(hooks, &eventHookAdapter{hook: h})
	}

	var extraRoutes func(*http.ServeMux, func(http.Handler) http.Handler, func(http.Handler) http.Handler)
	if len(o.routeRegistrars) > 0 {
		registrars := o.routeRegistrars
		extraRoutes = func(mux *http.ServeMux, subjectRole, adminRole func(http.Handler) http.Handler) {
			for _, fn := range registrars {
				fn(mux, &authHelperImpl{subjectRole: subjectRole, adminRole: adminRole})
			}
		}
	}

	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		mw := mw
		middlewares = append(middlewares, func(h http.Handler) http.Handler { return mw(h) })
	}

	srv := server.New(server.Config{
		DB:                  db,
		JWTMgr:              jwtMgr,
		AdminAuth:           adminAuth,
		Session:             sessionCtx,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Subjects:            subjects,
		Hooks:               hooks,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
	})

	return &Engine{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, for embedding in a caller's own
// server or for use in tests against httptest.Server.
func (e *Engine) Handler() http.Handler {
	return e.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails, then shuts down gracefully.
func (e *Engine) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return e.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes storage and the
// telemetry pipeline.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info("mse engine shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := e.srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("http shutdown error", "error", err)
	}

	e.db.Close(context.Background())
	_ = e.otelShutdown(context.Background())

	e.logger.Info("mse engine stopped")
	return nil
}

// ── Adapters ─────────────────────────────────────────────────────────────
//
// These bridge the public, dependency-free types above to their internal
// counterparts. Kept in this file because it is the only one that
// imports both sides of the boundary.

// judgeAdapter wraps a public Judge to satisfy internal/judge.Judge.
type judgeAdapter struct {
	j Judge
}

func (a *judgeAdapter) ScoreRationale(ctx context.Context, d judge.Dilemma, r judge.RationaleInput) (judge.Score, error) {
	score, err := a.j.ScoreRationale(ctx, toPublicDilemma(d), JudgeRationale{
		Rationale:  r.Rationale,
		Principles: r.Principles,
		InfoNeeded: r.InfoNeeded,
	})
	if err != nil {
		return judge.Score{}, err
	}
	return judge.Score{
		GRMCategory:          score.GRMCategory,
		MentionsBothPoles:    score.MentionsBothPoles,
		IdentifiesNonObvious: score.IdentifiesNonObvious,
		RecognizesResidue:    score.RecognizesResidue,
	}, nil
}

func toPublicDilemma(d judge.Dilemma) JudgeDilemma {
	return JudgeDilemma{
		AxisLeftPole:               d.AxisLeftPole,
		AxisRightPole:              d.AxisRightPole,
		DilemmaType:                string(d.DilemmaType),
		NonObviousFactors:          d.NonObviousFactors,
		RequiresResidueRecognition: d.RequiresResidueRecognition,
		Severity:                   d.Parameters.Severity,
		Certainty:                  d.Parameters.Certainty,
		Immediacy:                  d.Parameters.Immediacy,
		Relationship:               d.Parameters.Relationship,
		Consent:                    d.Parameters.Consent,
		Reversibility:              d.Parameters.Reversibility,
		Legality:                   d.Parameters.Legality,
		NumAffected:                d.Parameters.NumAffected,
	}
}

// subjectAdapter wraps a public Subject to satisfy server.SubjectResolver.
type subjectAdapter struct {
	s Subject
}

func (a *subjectAdapter) Resolve(ctx context.Context, opaqueID string) (string, error) {
	return a.s.Resolve(ctx, opaqueID)
}

// eventHookAdapter wraps a public EventHook to satisfy server.SnapshotHook,
// converting the internal model.Snapshot into the curated public Snapshot.
type eventHookAdapter struct {
	hook EventHook
}

func (a *eventHookAdapter) OnRunCompleted(ctx context.Context, snap model.Snapshot) error {
	return a.hook.OnRunCompleted(ctx, toPublicSnapshot(snap))
}

func (a *eventHookAdapter) OnGamingFlagged(ctx context.Context, runID string, score float64) error {
	return a.hook.OnGamingFlagged(ctx, runID, score)
}

func toPublicSnapshot(s model.Snapshot) Snapshot {
	axisScores := make(map[string]AxisScore, len(s.AxisScores))
	for code, as := range s.AxisScores {
		flags := make([]string, len(as.Flags))
		for i, f := range as.Flags {
			flags[i] = string(f)
		}
		axisScores[code] = AxisScore{
			AxisID: as.AxisID,
			B:      as.B,
			A:      as.A,
			SEB:    as.SEB,
			NItems: as.NItems,
			Flags:  flags,
		}
	}
	return Snapshot{
		RunID:               s.RunID,
		SubjectID:           s.SubjectID,
		ExamVersion:         s.ExamVersion,
		AxisScores:          axisScores,
		GamingScore:         s.Gaming.Score,
		GamingFlagged:       s.Gaming.Flagged,
		SophisticationIndex: s.SI.Composite,
		SophisticationLevel: string(s.SI.Level),
		MR:                  s.MR,
		IsCurrent:           s.IsCurrent,
		CreatedAt:           time.UnixMilli(s.CreatedAt).UTC(),
	}
}

// authHelperImpl implements AuthHelper using the role middleware
// constructors built inside server.New's route table, bridging the
// public interface to the internal RBAC middleware without extension
// code needing to import internal/server.
type authHelperImpl struct {
	subjectRole func(http.Handler) http.Handler
	adminRole   func(http.Handler) http.Handler
}

func (a *authHelperImpl) RequireRole(role Role) func(http.Handler) http.Handler {
	if role == RoleAdmin {
		return a.adminRole
	}
	return a.subjectRole
}
