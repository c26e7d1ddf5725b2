package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPJudge delegates scoring to an external HTTP endpoint returning a
// JSON Score. It is one concrete Judge among possibly several; callers
// wrap it in Fallback so an unreachable endpoint never surfaces an error.
type HTTPJudge struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPJudge builds a Judge that POSTs to baseURL+"/score" and decodes
// a JSON Score from the response body.
func NewHTTPJudge(baseURL string) *HTTPJudge {
	return &HTTPJudge{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout + 5*time.Second,
		},
	}
}

type httpScoreRequest struct {
	AxisLeftPole               string               `json:"axis_left_pole"`
	AxisRightPole              string               `json:"axis_right_pole"`
	DilemmaType                string               `json:"dilemma_type"`
	NonObviousFactors          []string             `json:"non_obvious_factors"`
	RequiresResidueRecognition bool                 `json:"requires_residue_recognition"`
	Parameters                 httpScoreParameters `json:"parameters"`
	Rationale                  string               `json:"rationale"`
	Principles                 []string             `json:"principles"`
	InfoNeeded                 []string             `json:"info_needed"`
}

type httpScoreParameters struct {
	Severity      float64 `json:"severity"`
	Certainty     float64 `json:"certainty"`
	Immediacy     float64 `json:"immediacy"`
	Relationship  float64 `json:"relationship"`
	Consent       float64 `json:"consent"`
	Reversibility float64 `json:"reversibility"`
	Legality      float64 `json:"legality"`
	NumAffected   int     `json:"num_affected"`
}

type httpScoreResponse struct {
	GRMCategory          int  `json:"grm_category"`
	MentionsBothPoles    bool `json:"mentions_both_poles"`
	IdentifiesNonObvious bool `json:"identifies_non_obvious"`
	RecognizesResidue    bool `json:"recognizes_residue"`
}

func (j *HTTPJudge) ScoreRationale(ctx context.Context, d Dilemma, r RationaleInput) (Score, error) {
	body, err := json.Marshal(httpScoreRequest{
		AxisLeftPole:               d.AxisLeftPole,
		AxisRightPole:              d.AxisRightPole,
		DilemmaType:                string(d.DilemmaType),
		NonObviousFactors:          d.NonObviousFactors,
		RequiresResidueRecognition: d.RequiresResidueRecognition,
		Parameters: httpScoreParameters{
			Severity:      d.Parameters.Severity,
			Certainty:     d.Parameters.Certainty,
			Immediacy:     d.Parameters.Immediacy,
			Relationship:  d.Parameters.Relationship,
			Consent:       d.Parameters.Consent,
			Reversibility: d.Parameters.Reversibility,
			Legality:      d.Parameters.Legality,
			NumAffected:   d.Parameters.NumAffected,
		},
		Rationale:   r.Rationale,
		Principles:  r.Principles,
		InfoNeeded:  r.InfoNeeded,
	})
	if err != nil {
		return Score{}, fmt.Errorf("judge: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return Score{}, fmt.Errorf("judge: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return Score{}, fmt.Errorf("judge: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Score{}, fmt.Errorf("judge: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out httpScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Score{}, fmt.Errorf("judge: decode response: %w", err)
	}
	if out.GRMCategory < 0 || out.GRMCategory > 4 {
		return Score{}, fmt.Errorf("judge: grm_category %d out of range", out.GRMCategory)
	}

	return Score{
		GRMCategory:          out.GRMCategory,
		MentionsBothPoles:    out.MentionsBothPoles,
		IdentifiesNonObvious: out.IdentifiesNonObvious,
		RecognizesResidue:    out.RecognizesResidue,
	}, nil
}
