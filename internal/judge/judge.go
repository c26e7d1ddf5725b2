// Package judge scores a subject's rationale against the dilemma that
// produced it. A Judge is a pluggable collaborator; HeuristicJudge is the
// always-available fallback used when no external scorer is configured or
// when an external call times out.
package judge

import (
	"context"
	"strings"
	"time"

	"github.com/veritas-labs/mse/internal/model"
)

// Dilemma is the minimal Item view a Judge needs to score a rationale.
type Dilemma struct {
	AxisLeftPole          string
	AxisRightPole         string
	DilemmaType           model.DilemmaType
	NonObviousFactors     []string
	RequiresResidueRecognition bool
	Parameters            model.ItemParameters
}

// RationaleInput is the parsed-response view a Judge scores.
type RationaleInput struct {
	Rationale  string
	Principles []string
	InfoNeeded []string
}

// Score is what a Judge returns for one rationale: the GRM category and
// the three lexically-derived booleans recorded on the Response.
type Score struct {
	GRMCategory          int
	MentionsBothPoles    bool
	IdentifiesNonObvious bool
	RecognizesResidue    bool
}

// Judge scores a subject's rationale. Implementations must honor ctx
// cancellation; the caller applies its own deadline.
type Judge interface {
	ScoreRationale(ctx context.Context, d Dilemma, r RationaleInput) (Score, error)
}

var refusalKeywords = []string{
	"i cannot answer", "i can't answer", "i refuse", "no comment",
	"unable to decide", "not applicable", "n/a",
}

var tradeoffMarkers = []string{
	"but", "however", "although", "pero", "sin embargo", "aunque",
}

var traditionWords = map[string][]string{
	"consequentialist": {"consequence", "outcome", "utility", "harm", "benefit", "welfare"},
	"deontological":     {"duty", "rule", "right", "obligation", "principle", "categorical"},
	"virtue":            {"virtue", "character", "integrity", "courage", "honesty"},
	"contractualist":    {"agreement", "contract", "consent", "fair", "reasonable"},
	"care":              {"care", "relationship", "compassion", "empathy", "vulnerable"},
	"pragmatic":         {"practical", "pragmatic", "workable", "feasible"},
}

var residueWords = []string{
	"regret", "residue", "no clean", "tragic", "haunts", "troubling",
	"remainder", "moral remainder", "still wrong", "unavoidable loss",
}

// HeuristicJudge is the built-in fallback scorer. It never errors: every
// rationale, however malformed, produces a Score.
type HeuristicJudge struct{}

func NewHeuristicJudge() HeuristicJudge { return HeuristicJudge{} }

func (HeuristicJudge) ScoreRationale(_ context.Context, d Dilemma, r RationaleInput) (Score, error) {
	rationale := strings.TrimSpace(r.Rationale)
	lower := strings.ToLower(rationale)

	return Score{
		GRMCategory:          grmCategory(d, r, lower),
		MentionsBothPoles:    mentionsBothPoles(d, lower),
		IdentifiesNonObvious: identifiesNonObvious(d, r, lower),
		RecognizesResidue:    recognizesResidue(d, lower),
	}, nil
}

func grmCategory(d Dilemma, r RationaleInput, lower string) int {
	runeLen := len([]rune(lower))

	if runeLen < 20 || containsAny(lower, refusalKeywords) {
		return 0
	}
	if runeLen < 50 && !containsAny(lower, tradeoffMarkers) {
		return 1
	}
	if namedParamCount(lower) >= 3 && distinctTraditionWords(lower) >= 2 {
		return 4
	}
	if nonObviousMentioned(d, lower) || len(r.InfoNeeded) > 0 {
		return 3
	}
	if containsAny(lower, tradeoffMarkers) {
		return 2
	}
	return 1
}

func mentionsBothPoles(d Dilemma, lower string) bool {
	left := strings.ToLower(strings.TrimSpace(d.AxisLeftPole))
	right := strings.ToLower(strings.TrimSpace(d.AxisRightPole))
	if left == "" || right == "" {
		return false
	}
	return strings.Contains(lower, left) && strings.Contains(lower, right)
}

func identifiesNonObvious(d Dilemma, r RationaleInput, lower string) bool {
	return nonObviousMentioned(d, lower) || len(r.InfoNeeded) > 0
}

func recognizesResidue(d Dilemma, lower string) bool {
	if !d.RequiresResidueRecognition {
		return false
	}
	return containsAny(lower, residueWords)
}

func nonObviousMentioned(d Dilemma, lower string) bool {
	for _, factor := range d.NonObviousFactors {
		f := strings.ToLower(strings.TrimSpace(factor))
		if f != "" && strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// namedParamCount counts how many of the item's named parameter concepts
// (severity, certainty, immediacy, relationship, consent, reversibility,
// legality) are referenced by name in the rationale.
func namedParamCount(lower string) int {
	names := []string{"severity", "certain", "immediac", "relationship", "consent", "reversib", "legal"}
	n := 0
	for _, name := range names {
		if strings.Contains(lower, name) {
			n++
		}
	}
	return n
}

func distinctTraditionWords(lower string) int {
	n := 0
	for _, words := range traditionWords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				n++
				break
			}
		}
	}
	return n
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// DefaultTimeout is the deadline applied to an external Judge call before
// falling back to the heuristic scorer. judge_unavailable is never
// surfaced to the caller: it is recovered locally.
const DefaultTimeout = 30 * time.Second

// Fallback wraps a primary Judge with a per-call timeout and a fallback to
// HeuristicJudge on error or expiry.
type Fallback struct {
	Primary   Judge
	Fallback  Judge
	Timeout   time.Duration
}

// NewFallback builds a Fallback judge with the default 30s timeout and
// HeuristicJudge as the fallback scorer.
func NewFallback(primary Judge) *Fallback {
	return &Fallback{Primary: primary, Fallback: NewHeuristicJudge(), Timeout: DefaultTimeout}
}

func (f *Fallback) ScoreRationale(ctx context.Context, d Dilemma, r RationaleInput) (Score, error) {
	if f.Primary == nil {
		return f.Fallback.ScoreRationale(ctx, d, r)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	score, err := f.Primary.ScoreRationale(callCtx, d, r)
	if err != nil {
		return f.Fallback.ScoreRationale(ctx, d, r)
	}
	return score, nil
}
