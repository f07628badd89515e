package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepshare/prepshare-go/internal/engine"
	"github.com/prepshare/prepshare-go/internal/store"
)

// InventoryHandler exposes the personal stockpile.
type InventoryHandler struct {
	inventory *engine.Inventory
}

func NewInventoryHandler(inventory *engine.Inventory) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	resources, err := h.inventory.List(r.Context(), user.ID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*store.Resource{"resources": resources})
}

// CreateResourceRequest is the body for POST /api/inventory.
type CreateResourceRequest struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	ShelfLifeDays int     `json:"shelf_life_days"`
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	var req CreateResourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resource, err := h.inventory.Add(r.Context(), user.ID, engine.AddResourceInput{
		Name:          req.Name,
		Category:      req.Category,
		Quantity:      req.Quantity,
		Unit:          req.Unit,
		ShelfLifeDays: req.ShelfLifeDays,
	})
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, resource)
}

// Get handles GET /api/inventory/{resourceID}.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	resource, err := h.inventory.Get(r.Context(), user.ID, chi.URLParam(r, "resourceID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resource)
}

// UpdateResourceRequest is the body for PATCH /api/inventory/{resourceID}.
// Omitted fields are left unchanged.
type UpdateResourceRequest struct {
	Name          *string  `json:"name"`
	Category      *string  `json:"category"`
	Quantity      *float64 `json:"quantity"`
	Unit          *string  `json:"unit"`
	ShelfLifeDays *int     `json:"shelf_life_days"`
}

// Update handles PATCH /api/inventory/{resourceID}.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	var req UpdateResourceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resource, err := h.inventory.Update(r.Context(), user.ID, chi.URLParam(r, "resourceID"), engine.UpdateResourceInput{
		Name:          req.Name,
		Category:      req.Category,
		Quantity:      req.Quantity,
		Unit:          req.Unit,
		ShelfLifeDays: req.ShelfLifeDays,
	})
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, resource)
}

// Delete handles DELETE /api/inventory/{resourceID}.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	if err := h.inventory.Delete(r.Context(), user.ID, chi.URLParam(r, "resourceID")); err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
