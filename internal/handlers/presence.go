package handlers

import (
	"net/http"

	"github.com/baz1ga/scenarwall/internal/middleware"
	"github.com/baz1ga/scenarwall/internal/presence"
)

type PresenceHandler struct {
	registry *presence.Registry
}

func NewPresenceHandler(registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// Current returns the tenant's live presence snapshot for dashboards.
func (h *PresenceHandler) Current(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantID(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presence": h.registry.Snapshot(tenant),
	})
}
