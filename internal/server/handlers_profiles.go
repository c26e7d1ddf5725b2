package server

import (
	"errors"
	"net/http"

	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/storage"
)

// HandleGetProfile handles GET /profiles/{agent_id}: the subject's current
// snapshot.
func (h *Handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.resolvePathSubject(w, r, r.PathValue("agent_id"))
	if !ok {
		return
	}
	snap, err := h.db.LatestSnapshot(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no snapshot for this subject")
			return
		}
		h.writeInternalError(w, r, "failed to load profile", err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// HandleProfileHistory handles GET /profiles/{agent_id}/history.
func (h *Handlers) HandleProfileHistory(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.resolvePathSubject(w, r, r.PathValue("agent_id"))
	if !ok {
		return
	}
	limit := parseLimit(r, 20, 200)
	history, err := h.db.SnapshotHistory(r.Context(), agentID, limit)
	if err != nil {
		h.writeInternalError(w, r, "failed to load profile history", err)
		return
	}
	writeJSON(w, r, http.StatusOK, history)
}

// HandleLeaderboard handles GET /ratings/leaderboard.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)
	board, err := h.db.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeInternalError(w, r, "failed to load leaderboard", err)
		return
	}
	writeJSON(w, r, http.StatusOK, board)
}

// HandleCompare handles GET /compare?agents=a,b,c. The first agent listed
// is the comparison baseline; every other agent's per-axis b is reported
// as a delta against it, along with the SI composite delta.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	rawIDs := splitCommaList(r.URL.Query().Get("agents"))
	if len(rawIDs) < 2 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "agents must list at least two comma-separated subject ids")
		return
	}
	agentIDs := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := h.resolveSubject(r.Context(), raw)
		if err != nil {
			h.writeInternalError(w, r, "failed to resolve subject", err)
			return
		}
		agentIDs = append(agentIDs, id)
	}

	snapshots := make(map[string]model.Snapshot, len(agentIDs))
	for _, id := range agentIDs {
		snap, err := h.db.LatestSnapshot(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no snapshot for subject "+id)
				return
			}
			h.writeInternalError(w, r, "failed to load profile for comparison", err)
			return
		}
		snapshots[id] = snap
	}

	baselineID := agentIDs[0]
	baseline := snapshots[baselineID]

	result := model.CompareResult{BaselineAgentID: baselineID}
	for _, id := range agentIDs[1:] {
		snap := snapshots[id]
		deltas := make(map[string]float64, len(snap.AxisScores))
		for code, score := range snap.AxisScores {
			if base, ok := baseline.AxisScores[code]; ok {
				deltas[code] = score.B - base.B
			}
		}
		comparison := model.AgentComparison{AgentID: id, AxisDeltas: deltas}
		if snap.SI.Composite != 0 || baseline.SI.Composite != 0 {
			composite := snap.SI.Composite
			delta := snap.SI.Composite - baseline.SI.Composite
			comparison.SIComposite = &composite
			comparison.SIDelta = &delta
		}
		result.Agents = append(result.Agents, comparison)
	}
	writeJSON(w, r, http.StatusOK, result)
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
