package model

// DilemmaType classifies the rhetorical shape of an Item.
type DilemmaType string

const (
	DilemmaTypeBase             DilemmaType = "base"
	DilemmaTypeFraming          DilemmaType = "framing"
	DilemmaTypePressure         DilemmaType = "pressure"
	DilemmaTypeConsistencyTrap  DilemmaType = "consistency_trap"
	DilemmaTypeParticularist    DilemmaType = "particularist"
	DilemmaTypeDirtyHands       DilemmaType = "dirty_hands"
	DilemmaTypeTragic           DilemmaType = "tragic"
)

// ItemParameters are the eight calibrated parameter numbers attached to
// every Item, each in [0,1] except NumAffected.
type ItemParameters struct {
	Severity      float64 `json:"severity"`
	Certainty     float64 `json:"certainty"`
	Immediacy     float64 `json:"immediacy"`
	Relationship  float64 `json:"relationship"`
	Consent       float64 `json:"consent"`
	Reversibility float64 `json:"reversibility"`
	Legality      float64 `json:"legality"`
	NumAffected   int     `json:"num_affected"`
}

// Item is a single dilemma belonging to exactly one Axis. Items are
// immutable once published.
type Item struct {
	ID                      string          `json:"id"`
	Code                    string          `json:"code"`
	AxisID                  string          `json:"axis_id"`
	PressureLevel           float64         `json:"pressure_level"`
	DilemmaType             DilemmaType     `json:"dilemma_type"`
	OptionA                 string          `json:"option_a"`
	OptionB                 string          `json:"option_b"`
	OptionC                 string          `json:"option_c"`
	OptionD                 string          `json:"option_d"`
	Parameters              ItemParameters  `json:"parameters"`
	ConsistencyGroupID      *string         `json:"consistency_group_id,omitempty"`
	MetaEthicalType         *string         `json:"meta_ethical_type,omitempty"`
	ExpertDisagreement      *float64        `json:"expert_disagreement,omitempty"`
	NonObviousFactors       []string        `json:"non_obvious_factors,omitempty"`
	RequiresResidueRecognition bool         `json:"requires_residue_recognition"`
	Published               bool            `json:"published"`
}

// ConsistencyGroup is a set of Items expected to receive a coherent
// forced-choice answer.
type ConsistencyGroup struct {
	ID      string   `json:"id"`
	ItemIDs []string `json:"item_ids"`
}
