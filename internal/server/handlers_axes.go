package server

import (
	"errors"
	"net/http"

	"github.com/veritas-labs/mse/internal/model"
	"github.com/veritas-labs/mse/internal/storage"
)

// HandleListAxes handles GET /axes.
func (h *Handlers) HandleListAxes(w http.ResponseWriter, r *http.Request) {
	axes, err := h.db.ListAxes(r.Context(), true)
	if err != nil {
		h.writeInternalError(w, r, "failed to list axes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, axes)
}

// HandleGetAxis handles GET /axes/{id}. id is tried first as the primary
// key, then as an axis code, since callers may reasonably supply either.
func (h *Handlers) HandleGetAxis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	axis, err := h.db.GetAxis(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		axis, err = h.db.GetAxisByCode(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "axis not found")
			return
		}
		h.writeInternalError(w, r, "failed to load axis", err)
		return
	}
	writeJSON(w, r, http.StatusOK, axis)
}

// HandleListVersions handles GET /versions.
func (h *Handlers) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.db.ListExamVersions(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list exam versions", err)
		return
	}
	writeJSON(w, r, http.StatusOK, versions)
}

// HandleGetVersion handles GET /versions/{code}.
func (h *Handlers) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	version, err := h.db.ExamVersion(r.Context(), code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "exam version not found")
			return
		}
		h.writeInternalError(w, r, "failed to load exam version", err)
		return
	}
	writeJSON(w, r, http.StatusOK, version)
}
