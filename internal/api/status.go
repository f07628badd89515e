package api

import (
	"net/http"

	"github.com/prepshare/prepshare-go/internal/engine"
)

// StatusHandler exposes derived readiness views. The projections are
// computed from the store and may be served from a short-lived cache.
type StatusHandler struct {
	projector *engine.StatusProjector
}

func NewStatusHandler(projector *engine.StatusProjector) *StatusHandler {
	return &StatusHandler{projector: projector}
}

// Fulfillment handles GET /api/status/fulfillment.
func (h *StatusHandler) Fulfillment(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	status, err := h.projector.Fulfillment(r.Context(), user.ID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// Shared handles GET /api/status/shared.
func (h *StatusHandler) Shared(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	summary, err := h.projector.Shared(r.Context(), user.ID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}
