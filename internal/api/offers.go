package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepshare/prepshare-go/internal/engine"
	"github.com/prepshare/prepshare-go/internal/store"
)

// OffersHandler exposes shared offers and the requests against them.
type OffersHandler struct {
	sharing     *engine.SharingRegistry
	coordinator *engine.RequestCoordinator
	projector   *engine.StatusProjector
}

func NewOffersHandler(sharing *engine.SharingRegistry, coordinator *engine.RequestCoordinator, projector *engine.StatusProjector) *OffersHandler {
	return &OffersHandler{
		sharing:     sharing,
		coordinator: coordinator,
		projector:   projector,
	}
}

// List handles GET /api/offers. With ?community_id= it lists that
// community's offers; otherwise it lists the caller's own.
func (h *OffersHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}

	var (
		offers []*store.SharedOffer
		err    error
	)
	if communityID := r.URL.Query().Get("community_id"); communityID != "" {
		offers, err = h.sharing.ListByCommunity(r.Context(), user.ID, communityID)
	} else {
		offers, err = h.sharing.ListByOwner(r.Context(), user.ID)
	}
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*store.SharedOffer{"offers": offers})
}

// PublishOfferRequest is the body for POST /api/offers.
type PublishOfferRequest struct {
	ResourceID     string     `json:"resource_id"`
	CommunityID    string     `json:"community_id"`
	Quantity       float64    `json:"quantity"`
	AvailableUntil *time.Time `json:"available_until"`
	Location       string     `json:"location"`
	Notes          string     `json:"notes"`
}

// Create handles POST /api/offers.
func (h *OffersHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	var req PublishOfferRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	offer, err := h.sharing.Publish(r.Context(), user.ID, engine.PublishInput{
		ResourceID:     req.ResourceID,
		CommunityID:    req.CommunityID,
		Quantity:       req.Quantity,
		AvailableUntil: req.AvailableUntil,
		Location:       req.Location,
		Notes:          req.Notes,
	})
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, offer)
}

// Get handles GET /api/offers/{offerID}.
func (h *OffersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	offer, err := h.sharing.Get(r.Context(), user.ID, chi.URLParam(r, "offerID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, offer)
}

// ReviseOfferRequest is the body for PATCH /api/offers/{offerID}.
type ReviseOfferRequest struct {
	Quantity       *float64   `json:"quantity"`
	AvailableUntil *time.Time `json:"available_until"`
	Location       *string    `json:"location"`
	Notes          *string    `json:"notes"`
}

// Update handles PATCH /api/offers/{offerID}.
func (h *OffersHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	var req ReviseOfferRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	offer, err := h.sharing.Revise(r.Context(), user.ID, chi.URLParam(r, "offerID"), engine.ReviseInput{
		Quantity:       req.Quantity,
		AvailableUntil: req.AvailableUntil,
		Location:       req.Location,
		Notes:          req.Notes,
	})
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, offer)
}

// Delete handles DELETE /api/offers/{offerID} (withdraw).
func (h *OffersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	if err := h.sharing.Withdraw(r.Context(), user.ID, chi.URLParam(r, "offerID")); err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// ListRequests handles GET /api/offers/{offerID}/requests (owner-only).
func (h *OffersHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	requests, err := h.coordinator.ListByOffer(r.Context(), user.ID, chi.URLParam(r, "offerID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*store.ResourceRequest{"requests": requests})
}

// CreateRequestRequest is the body for POST /api/offers/{offerID}/requests.
type CreateRequestRequest struct {
	Quantity float64 `json:"quantity"`
	Message  string  `json:"message"`
}

// CreateRequest handles POST /api/offers/{offerID}/requests.
func (h *OffersHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	var req CreateRequestRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	request, err := h.coordinator.Create(r.Context(), user.ID, engine.CreateRequestInput{
		OfferID:  chi.URLParam(r, "offerID"),
		Quantity: req.Quantity,
		Message:  req.Message,
	})
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, request)
}

// OfferStatusResponse is the derived per-offer view.
type OfferStatusResponse struct {
	OfferID             string            `json:"offer_id"`
	Status              store.OfferStatus `json:"status"`
	PendingRequestCount int               `json:"pending_request_count"`
}

// Status handles GET /api/offers/{offerID}/status.
func (h *OffersHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	offerID := chi.URLParam(r, "offerID")

	offer, err := h.sharing.Get(r.Context(), user.ID, offerID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	pending, err := h.projector.PendingRequestCount(r.Context(), offerID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, OfferStatusResponse{
		OfferID:             offer.ID,
		Status:              offer.Status,
		PendingRequestCount: pending,
	})
}
