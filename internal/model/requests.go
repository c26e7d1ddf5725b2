package model

import "encoding/json"

// CreateRunRequest is the body of POST /evaluations. Both camelCase and
// snake_case spellings are accepted for the optional fields
// ("itemsPerAxis"↔"max_items_per_axis", "version"↔"exam_version").
type CreateRunRequest struct {
	AgentID      string
	Version      string
	ItemsPerAxis int
	Language     string
}

// UnmarshalJSON resolves the alias pairs into the canonical fields.
func (c *CreateRunRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["agent_id"].(string); ok {
		c.AgentID = v
	}
	if v, ok := firstString(raw, "version", "exam_version"); ok {
		c.Version = v
	}
	if v, ok := firstNumber(raw, "items_per_axis", "itemsPerAxis", "max_items_per_axis"); ok {
		c.ItemsPerAxis = int(v)
	}
	if v, ok := raw["language"].(string); ok {
		c.Language = v
	}
	return nil
}

func firstString(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok {
			return v, true
		}
	}
	return "", false
}

func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// CompareResult is the response body of GET /compare: one subject's
// per-axis b values relative to a baseline subject (the first agent in
// the request), plus the SI composite delta.
type CompareResult struct {
	BaselineAgentID string                 `json:"baseline_agent_id"`
	Agents          []AgentComparison      `json:"agents"`
}

// AgentComparison is one non-baseline agent's comparison row.
type AgentComparison struct {
	AgentID     string             `json:"agent_id"`
	AxisDeltas  map[string]float64 `json:"axis_deltas"`
	SIComposite *float64           `json:"si_composite"`
	SIDelta     *float64           `json:"si_delta"`
}
