package mse

import (
	"context"
	"net/http"
)

// JudgeDilemma is the minimal dilemma view passed to a Judge plug-in —
// a public mirror of internal/judge.Dilemma with no internal imports.
type JudgeDilemma struct {
	AxisLeftPole               string
	AxisRightPole              string
	DilemmaType                string
	NonObviousFactors          []string
	RequiresResidueRecognition bool
	Severity                   float64
	Certainty                  float64
	Immediacy                  float64
	Relationship               float64
	Consent                    float64
	Reversibility              float64
	Legality                   float64
	NumAffected                int
}

// JudgeRationale is the parsed-response view a Judge scores.
type JudgeRationale struct {
	Rationale  string
	Principles []string
	InfoNeeded []string
}

// JudgeScore is what a Judge returns: the GRM category (0-4) plus the
// three lexically-derived booleans recorded on the Response.
type JudgeScore struct {
	GRMCategory          int
	MentionsBothPoles    bool
	IdentifiesNonObvious bool
	RecognizesResidue    bool
}

// Judge scores a subject's rationale into a GRM category and flags.
// When supplied via WithJudge, it replaces the built-in HeuristicJudge
// as the primary scorer; the heuristic remains the fallback on error or
// timeout — a Judge implementation need not handle its own failures
// gracefully, Engine does that for it.
type Judge interface {
	ScoreRationale(ctx context.Context, d JudgeDilemma, r JudgeRationale) (JudgeScore, error)
}

// Subject translates an opaque agent identifier (as supplied by a caller
// of POST /evaluations or GET /profiles/{agent_id}) into the canonical
// subject id MSE stores runs and snapshots under. The default is the
// identity function — callers that don't need identity federation can
// ignore this extension point entirely.
type Subject interface {
	Resolve(ctx context.Context, opaqueID string) (string, error)
}

// EventHook receives async notifications when a run completes or gaming
// is flagged. Multiple hooks may be registered via multiple WithEventHook
// calls; hook methods run in a goroutine and must not block indefinitely.
// Failures are logged but never fail the originating request.
type EventHook interface {
	OnRunCompleted(ctx context.Context, snapshot Snapshot) error
	OnGamingFlagged(ctx context.Context, runID string, score float64) error
}

// RouteRegistrar registers additional routes on the shared HTTP mux.
// Called once during New(), after all core MSE routes are registered.
type RouteRegistrar func(mux *http.ServeMux, auth AuthHelper)

// AuthHelper provides role-gated middleware for use in a RouteRegistrar,
// so extension routes share the same auth chain as the core REST surface
// without importing internal/server directly.
type AuthHelper interface {
	RequireRole(role Role) func(http.Handler) http.Handler
}

// Middleware wraps the root HTTP handler, applied outermost — it sees
// every request, including /health. Multiple middlewares are applied in
// registration order (first-registered is outermost).
type Middleware func(http.Handler) http.Handler
