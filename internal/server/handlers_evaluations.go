package server

import (
	"errors"
	"net/http"

	"github.com/veritas-labs/mse/internal/auth"
	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/parser"
	"github.com/veritas-labs/mse/internal/session"
	"github.com/veritas-labs/mse/internal/storage"
)

// HandleCreateRun handles POST /evaluations.
func (h *Handlers) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.CreateRunRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}
	if req.AgentID == "" {
		req.AgentID = claims.SubjectID
	}
	if req.Version == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "version is required")
		return
	}
	if req.AgentID != claims.SubjectID && !auth.AtLeast(claims.Role, auth.RoleAdmin) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeUnauthorized, "can only start evaluations for your own subject id")
		return
	}

	subjectID, err := h.resolveSubject(r.Context(), req.AgentID)
	if err != nil {
		h.writeInternalError(w, r, "failed to resolve subject", err)
		return
	}

	cfg := model.RunConfig{ItemsPerAxis: req.ItemsPerAxis, Language: req.Language}
	run, err := h.session.StartRun(r.Context(), subjectID, req.Version, cfg)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrActiveRunExists):
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		case errors.Is(err, session.ErrInvalidConfig):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
		default:
			h.writeInternalError(w, r, "failed to create run", err)
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, run)
}

// HandleNextItem handles GET /evaluations/{run_id}/next.
func (h *Handlers) HandleNextItem(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, err := h.db.GetRun(r.Context(), runID)
	if err != nil {
		h.writeRunLoadError(w, r, err)
		return
	}
	if !authorizeSubject(w, r, run.SubjectID) {
		return
	}

	result, err := h.session.NextItem(r.Context(), runID)
	if err != nil {
		h.writeInternalError(w, r, "failed to select next item", err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleSubmitResponse handles POST /evaluations/{run_id}/responses.
func (h *Handlers) HandleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, err := h.db.GetRun(r.Context(), runID)
	if err != nil {
		h.writeRunLoadError(w, r, err)
		return
	}
	if !authorizeSubject(w, r, run.SubjectID) {
		return
	}

	var payload map[string]any
	if err := decodeJSON(r, &payload, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}
	itemID, _ := payload["item_id"].(string)
	if itemID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "item_id is required")
		return
	}

	result, err := h.session.SubmitResponse(r.Context(), runID, itemID, payload)
	if err != nil {
		var parseErr *parser.ParseError
		switch {
		case errors.As(err, &parseErr):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, parseErr.Error())
		case errors.Is(err, storage.ErrDuplicateResponse):
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "item already answered in this run")
		case errors.Is(err, storage.ErrRunAlreadyComplete):
			writeError(w, r, http.StatusConflict, model.ErrCodeRunAlreadyComplete, "run is not in_progress")
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "item not found")
		default:
			h.writeInternalError(w, r, "failed to submit response", err)
		}
		return
	}
	if result.Snapshot != nil {
		h.fireHooks(*result.Snapshot)
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleGetRun handles GET /evaluations/{run_id}.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, err := h.db.GetRun(r.Context(), runID)
	if err != nil {
		h.writeRunLoadError(w, r, err)
		return
	}
	if !authorizeSubject(w, r, run.SubjectID) {
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (h *Handlers) writeRunLoadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "run not found")
		return
	}
	h.writeInternalError(w, r, "failed to load run", err)
}
