package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepshare/prepshare-go/internal/engine"
	"github.com/prepshare/prepshare-go/internal/store"
)

// RequestsHandler exposes resource requests from the caller's point of view.
type RequestsHandler struct {
	coordinator *engine.RequestCoordinator
}

func NewRequestsHandler(coordinator *engine.RequestCoordinator) *RequestsHandler {
	return &RequestsHandler{coordinator: coordinator}
}

// List handles GET /api/requests. ?role=received lists requests against
// the caller's offers; the default lists requests the caller made.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}

	var (
		requests []*store.ResourceRequest
		err      error
	)
	if r.URL.Query().Get("role") == "received" {
		requests, err = h.coordinator.ListReceived(r.Context(), user.ID)
	} else {
		requests, err = h.coordinator.ListMine(r.Context(), user.ID)
	}
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*store.ResourceRequest{"requests": requests})
}

// Get handles GET /api/requests/{requestID}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	request, err := h.coordinator.Get(r.Context(), user.ID, chi.URLParam(r, "requestID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, request)
}

// RespondRequest is the optional body for approve and deny.
type RespondRequest struct {
	Message string `json:"message"`
}

func decodeOptionalResponse(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return "", true
	}
	var req RespondRequest
	if !DecodeJSON(w, r, &req) {
		return "", false
	}
	return req.Message, true
}

// Approve handles POST /api/requests/{requestID}/approve.
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	message, ok := decodeOptionalResponse(w, r)
	if !ok {
		return
	}
	request, err := h.coordinator.Approve(r.Context(), user.ID, chi.URLParam(r, "requestID"), message)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, request)
}

// Deny handles POST /api/requests/{requestID}/deny.
func (h *RequestsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	message, ok := decodeOptionalResponse(w, r)
	if !ok {
		return
	}
	request, err := h.coordinator.Deny(r.Context(), user.ID, chi.URLParam(r, "requestID"), message)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, request)
}

// Complete handles POST /api/requests/{requestID}/complete.
func (h *RequestsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	request, err := h.coordinator.Complete(r.Context(), user.ID, chi.URLParam(r, "requestID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, request)
}

// Cancel handles POST /api/requests/{requestID}/cancel.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	request, err := h.coordinator.Cancel(r.Context(), user.ID, chi.URLParam(r, "requestID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, request)
}
