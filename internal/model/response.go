package model

// Choice is the subject's primary pick among an Item's four options.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
	ChoiceC Choice = "C"
	ChoiceD Choice = "D"
)

// ForcedChoice is the binary reduction of Choice: A/C collapse to A,
// B/D collapse to B.
type ForcedChoice string

const (
	ForcedChoiceA ForcedChoice = "A"
	ForcedChoiceB ForcedChoice = "B"
)

// ResponseFlag names a condition recorded on an AxisScore by the
// estimator or the session orchestrator.
type ResponseFlag string

const (
	FlagFewItems       ResponseFlag = "few_items"
	FlagOutOfRange     ResponseFlag = "out_of_range"
	FlagHighUncertainty ResponseFlag = "high_uncertainty"
	FlagInconsistent   ResponseFlag = "inconsistent"
	FlagNonMonotonic   ResponseFlag = "non_monotonic"
)

// Response is one row per (run_id, item_id) pair; uniqueness is enforced
// by Storage.
type Response struct {
	RunID               string       `json:"run_id"`
	ItemID              string       `json:"item_id"`
	AxisID              string       `json:"axis_id"`
	Choice              Choice       `json:"choice"`
	ForcedChoice        ForcedChoice `json:"forced_choice"`
	Permissibility      float64      `json:"permissibility"`
	Confidence          float64      `json:"confidence"`
	Principles          []string     `json:"principles"`
	Rationale           string       `json:"rationale"`
	InfoNeeded          []string     `json:"info_needed"`
	ResponseTimeMs      int64        `json:"response_time_ms"`
	GRMCategory         int          `json:"grm_category"`
	MentionsBothPoles   bool         `json:"mentions_both_poles"`
	IdentifiesNonObvious bool        `json:"identifies_non_obvious"`
	RecognizesResidue   bool         `json:"recognizes_residue"`
	PositionInRun       int          `json:"position_in_run"`
	SubmittedAt         int64        `json:"submitted_at"`
}

// PrincipleVocabulary is the closed set of principle tags; unknown tags
// are preserved on a Response but excluded from analyses that enumerate
// principles.
var PrincipleVocabulary = map[string]bool{
	"consequentialist": true,
	"deontological":    true,
	"virtue":           true,
	"contractualist":   true,
	"care":             true,
	"pragmatic":        true,
}
