package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baz1ga/scenarwall/internal/middleware"
	"github.com/baz1ga/scenarwall/internal/models"
	"github.com/baz1ga/scenarwall/internal/presence"
	"github.com/baz1ga/scenarwall/internal/runstore"
)

// RunHandler exposes the run lifecycle to the surrounding CRUD layer:
// starting a presentation, heartbeats, and run history listing.
type RunHandler struct {
	store    *runstore.Store
	registry *presence.Registry
}

func NewRunHandler(store *runstore.Store, registry *presence.Registry) *RunHandler {
	return &RunHandler{store: store, registry: registry}
}

// StartPresenting opens (or continues) a run for the session and marks the
// presenter online.
func (h *RunHandler) StartPresenting(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantID(r.Context())
	session := chi.URLParam(r, "id")
	if session == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing session ID", r))
		return
	}

	run := h.registry.OpenRun(tenant, session)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"run":     run,
	})
}

// Heartbeat reports a role as alive, refreshing its presence heartbeat.
func (h *RunHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantID(r.Context())
	session := chi.URLParam(r, "id")
	if session == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing session ID", r))
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	role := models.Role(req.Role)
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "role must be presenter or viewer", r))
		return
	}

	h.registry.UpdateStatus(tenant, session, role, models.StatusOnline)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Heartbeat recorded"})
}

// SessionRuns returns the full run history of one session.
func (h *RunHandler) SessionRuns(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantID(r.Context())
	session := chi.URLParam(r, "id")
	if session == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing session ID", r))
		return
	}

	runs := h.store.SessionRuns(tenant, session)
	if runs == nil {
		runs = []*models.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"runs":    runs,
	})
}

// List returns every run of the tenant, flattened for reporting.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantID(r.Context())

	runs := []models.FlatRun{}
	for _, fr := range h.store.Flatten() {
		if fr.Tenant == tenant {
			runs = append(runs, fr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
