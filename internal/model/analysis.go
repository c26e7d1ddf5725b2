package model

// GamingResult is the six-signal gaming ensemble output for one run.
type GamingResult struct {
	ResponseTimeUniformity  float64 `json:"response_time_uniformity"`
	RationaleDiversity      float64 `json:"rationale_diversity"`
	PatternRegularity       float64 `json:"pattern_regularity"`
	ParameterSensitivity    float64 `json:"parameter_sensitivity"`
	FramingSusceptibility   float64 `json:"framing_susceptibility"`
	ConsistencyViolationRate float64 `json:"consistency_violation_rate"`
	Score                   float64 `json:"score"`
	Flagged                 bool    `json:"flagged"`
}

// ProceduralResult is the six descriptive run-level statistics reported
// on a Snapshot for dashboard consumption; it does not feed the
// Sophistication Index.
type ProceduralResult struct {
	MedianResponseTimeMs    float64 `json:"median_response_time_ms"`
	MeanConfidence          float64 `json:"mean_confidence"`
	MeanRationaleLength     float64 `json:"mean_rationale_length"`
	PrincipleTagDiversity   float64 `json:"principle_tag_diversity"`
	ForcedChoiceStability   float64 `json:"forced_choice_stability"`
	ItemCompletionRate      float64 `json:"item_completion_rate"`
}

// CapacityResult is the seven sub-scores, each in [0,1] or null, that
// feed the Sophistication Index's Metacognition (calibration, info-seeking,
// moral humility, confidence-difficulty correlation) and Stability
// (consistency, moral coherence, consistency-trap agreement mean)
// dimensions.
type CapacityResult struct {
	Calibration                    *float64 `json:"calibration"`
	InfoSeeking                    *float64 `json:"info_seeking"`
	MoralHumility                  *float64 `json:"moral_humility"`
	ConfidenceDifficultyCorrelation *float64 `json:"confidence_difficulty_correlation"`
	Consistency                    *float64 `json:"consistency"`
	MoralCoherence                 *float64 `json:"moral_coherence"`
	ConsistencyTrapAgreementMean   *float64 `json:"consistency_trap_agreement_mean"`
}

// SILevel is the 0-100 band an SI composite falls into.
type SILevel string

const (
	SILevelReactive     SILevel = "reactive"
	SILevelDeliberative SILevel = "deliberative"
	SILevelIntegrated   SILevel = "integrated"
	SILevelReflective   SILevel = "reflective"
	SILevelAutonomous   SILevel = "autonomous"
)

// SIResult is the Sophistication Index composite and its five
// constituent dimensions.
type SIResult struct {
	Integration        *float64 `json:"integration"`
	Metacognition      *float64 `json:"metacognition"`
	Stability          *float64 `json:"stability"`
	Adaptability       *float64 `json:"adaptability"`
	SelfModelAccuracy  *float64 `json:"self_model_accuracy"`
	Composite          float64  `json:"composite"`
	Level              SILevel  `json:"level"`
}

// CouplingPair is one off-diagonal cell of the coupling matrix, named by
// the two axis codes it relates.
type CouplingPair struct {
	AxisA        string  `json:"axis_a"`
	AxisB        string  `json:"axis_b"`
	Rho          float64 `json:"rho"`
	PValue       float64 `json:"p_value"`
	Significant  bool    `json:"significant"`
	CILow        *float64 `json:"ci_low,omitempty"`
	CIHigh       *float64 `json:"ci_high,omitempty"`
}

// CouplingResult is the full output of the coupling analyzer for one
// run: the shrunk correlation matrix, significance, hub scores, the
// bootstrap median CI width, split-half reliability, and top pairs. The
// analyzer does not fill the per-pair CILow/CIHigh fields.
type CouplingResult struct {
	AxisCodes        []string            `json:"axis_codes"`
	Matrix           [][]float64         `json:"matrix"`
	PValues          [][]float64         `json:"p_values"`
	Significant      [][]bool            `json:"significant"`
	HubScores        map[string]float64  `json:"hub_scores"`
	MedianCIWidth    *float64            `json:"median_ci_width"`
	Reliability      *float64            `json:"reliability"`
	TopStrongest     []CouplingPair      `json:"top_strongest"`
	TopWeakest       []CouplingPair      `json:"top_weakest"`
	// VarianceExplainedFirstPC is the fraction of total variance carried
	// by the dominant eigenvalue of the shrunk correlation matrix,
	// feeding the Sophistication Index's Integration dimension as the
	// external coherence analyzer's output.
	VarianceExplainedFirstPC *float64 `json:"variance_explained_first_pc,omitempty"`
	Warning          string              `json:"warning,omitempty"`
}

// Snapshot is the frozen, denormalized profile written once per
// completed run. At most one snapshot per subject carries IsCurrent.
type Snapshot struct {
	ID          string                   `json:"id"`
	RunID       string                   `json:"run_id"`
	SubjectID   string                   `json:"subject_id"`
	ExamVersion string                   `json:"exam_version"`
	AxisScores  map[string]AxisScore     `json:"axis_scores"`
	Procedural  ProceduralResult         `json:"procedural"`
	Capacity    CapacityResult           `json:"capacity"`
	Gaming      GamingResult             `json:"gaming"`
	Coupling    CouplingResult           `json:"coupling"`
	SI          SIResult                 `json:"sophistication_index"`
	MR          float64                  `json:"mr"`
	IsCurrent   bool                     `json:"is_current"`
	CreatedAt   int64                    `json:"created_at"`
}

// Rating is the per-subject Moral Rating accumulator.
type Rating struct {
	SubjectID      string  `json:"subject_id"`
	MR             float64 `json:"mr"`
	Uncertainty    float64 `json:"uncertainty"`
	ItemsProcessed int     `json:"items_processed"`
	Peak           float64 `json:"peak"`
	LastUpdated    int64   `json:"last_updated"`
}

// ExamVersion fixes items-per-axis and the published item subset for a
// given code (e.g. "v0.1b", "v2.1").
type ExamVersion struct {
	Code         string `json:"code"`
	ItemsPerAxis int    `json:"items_per_axis"`
	Published    bool   `json:"published"`
}
