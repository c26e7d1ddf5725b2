package server

import (
	"net/http"

	"github.com/veritas-labs/mse/internal/auth"
	"github.com/veritas-labs/mse/internal/model"
)

// HandleIssueToken handles POST /auth/token. A subject token is issued
// for any agent_id without further proof of identity — the REST surface
// trusts its caller (typically an orchestrator) to have already
// authenticated the agent by some external means, per the Subject
// collaborator's delegated-identity contract. An admin token additionally
// requires api_key to verify against the configured admin key.
func (h *Handlers) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "agent_id is required")
		return
	}

	role := auth.RoleSubject
	if req.Role == string(auth.RoleAdmin) {
		if h.adminAuth == nil || !h.adminAuth.Authenticate(req.APIKey) {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid admin api key")
			return
		}
		role = auth.RoleAdmin
	}

	subjectID, err := h.resolveSubject(r.Context(), req.AgentID)
	if err != nil {
		h.writeInternalError(w, r, "failed to resolve subject", err)
		return
	}

	token, exp, err := h.jwtMgr.IssueToken(subjectID, role)
	if err != nil {
		h.writeInternalError(w, r, "failed to issue token", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: exp, Role: string(role)})
}
