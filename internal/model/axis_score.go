package model

// AxisScore is the per-(run,axis) RLTM fit, updated after every response
// on the axis and finalized at run completion.
type AxisScore struct {
	RunID  string         `json:"run_id"`
	AxisID string         `json:"axis_id"`
	B      float64        `json:"b"`
	A      float64        `json:"a"`
	SEB    float64        `json:"se_b"`
	NItems int            `json:"n_items"`
	Flags  []ResponseFlag `json:"flags"`
}

// HasFlag reports whether f is present on the score.
func (s AxisScore) HasFlag(f ResponseFlag) bool {
	for _, existing := range s.Flags {
		if existing == f {
			return true
		}
	}
	return false
}
