package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepshare/prepshare-go/internal/identity"
)

// CommunitiesHandler exposes community membership management.
type CommunitiesHandler struct {
	communities identity.CommunityRepo
}

func NewCommunitiesHandler(communities identity.CommunityRepo) *CommunitiesHandler {
	return &CommunitiesHandler{communities: communities}
}

// List handles GET /api/communities.
func (h *CommunitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := RequireUser(w, r); !ok {
		return
	}
	communities, err := h.communities.List(r.Context())
	if err != nil {
		WriteInternalError(w, "failed to list communities")
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*identity.Community{"communities": communities})
}

// ListMine handles GET /api/communities/mine.
func (h *CommunitiesHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	communities, err := h.communities.ListForUser(r.Context(), user.ID)
	if err != nil {
		WriteInternalError(w, "failed to list communities")
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*identity.Community{"communities": communities})
}

// CreateCommunityRequest is the body for POST /api/communities.
type CreateCommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/communities. The creator joins automatically.
func (h *CommunitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	var req CreateCommunityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		WriteBadRequest(w, ReasonMissingField, "community name required")
		return
	}

	community := &identity.Community{
		ID:          identity.UUIDv7(),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   user.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.communities.Create(r.Context(), community); err != nil {
		if errors.Is(err, identity.ErrCommunityExists) {
			WriteConflict(w, ReasonConflict, "community already exists")
			return
		}
		WriteInternalError(w, "failed to create community")
		return
	}
	WriteJSON(w, http.StatusCreated, community)
}

// Get handles GET /api/communities/{communityID}.
func (h *CommunitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := RequireUser(w, r); !ok {
		return
	}
	community, err := h.communities.Get(r.Context(), chi.URLParam(r, "communityID"))
	if err != nil {
		WriteNotFound(w, "community not found")
		return
	}
	WriteJSON(w, http.StatusOK, community)
}

// Join handles POST /api/communities/{communityID}/join.
func (h *CommunitiesHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	err := h.communities.Join(r.Context(), chi.URLParam(r, "communityID"), user.ID)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "joined"})
	case errors.Is(err, identity.ErrCommunityNotFound):
		WriteNotFound(w, "community not found")
	case errors.Is(err, identity.ErrAlreadyMember):
		WriteConflict(w, ReasonConflict, "already a member")
	default:
		WriteInternalError(w, "failed to join community")
	}
}

// Leave handles POST /api/communities/{communityID}/leave.
func (h *CommunitiesHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	err := h.communities.Leave(r.Context(), chi.URLParam(r, "communityID"), user.ID)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "left"})
	case errors.Is(err, identity.ErrCommunityNotFound):
		WriteNotFound(w, "community not found")
	case errors.Is(err, identity.ErrNotMember):
		WriteConflict(w, ReasonConflict, "not a member")
	default:
		WriteInternalError(w, "failed to leave community")
	}
}
