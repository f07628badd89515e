package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prepshare/prepshare-go/internal/identity"
	"github.com/prepshare/prepshare-go/internal/platform/logutil"
	"github.com/prepshare/prepshare-go/internal/store"
)

var validCategories = map[string]bool{
	store.CategoryFood:      true,
	store.CategoryWater:     true,
	store.CategoryMedicine:  true,
	store.CategoryEnergy:    true,
	store.CategoryTools:     true,
	store.CategoryMachinery: true,
	store.CategoryOther:     true,
}

// Inventory manages a user's personal stockpile. All operations are scoped
// to the acting owner: another user's resources behave as if they do not
// exist.
type Inventory struct {
	store store.Store
	log   *slog.Logger
}

func NewInventory(st store.Store, log *slog.Logger) *Inventory {
	return &Inventory{store: st, log: logutil.NoopIfNil(log)}
}

// AddResourceInput describes a new stockpile item.
type AddResourceInput struct {
	Name          string
	Category      string
	Quantity      float64
	Unit          string
	ShelfLifeDays int
}

// UpdateResourceInput is a partial update; nil fields are left untouched.
type UpdateResourceInput struct {
	Name          *string
	Category      *string
	Quantity      *float64
	Unit          *string
	ShelfLifeDays *int
}

// Add creates a resource in the owner's stockpile.
func (s *Inventory) Add(ctx context.Context, ownerID string, in AddResourceInput) (*store.Resource, error) {
	if in.Name == "" {
		return nil, Validation(ReasonMissingField, "name is required")
	}
	if !validCategories[in.Category] {
		return nil, Validation(ReasonInvalidCategory, "unknown category %q", in.Category)
	}
	if in.Quantity < 0 {
		return nil, Validation(ReasonInvalidQuantity, "quantity must not be negative")
	}
	if in.ShelfLifeDays < 0 {
		return nil, Validation(ReasonInvalidQuantity, "shelf life must not be negative")
	}

	now := time.Now()
	r := &store.Resource{
		ID:            identity.UUIDv7(),
		OwnerID:       ownerID,
		Name:          in.Name,
		Category:      in.Category,
		Quantity:      in.Quantity,
		Unit:          in.Unit,
		ShelfLifeDays: in.ShelfLifeDays,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateResource(ctx, r); err != nil {
		return nil, err
	}
	s.log.Debug("resource added", "resource_id", r.ID, "owner_id", ownerID, "category", r.Category)
	return r, nil
}

// Get returns an owned resource.
func (s *Inventory) Get(ctx context.Context, ownerID, resourceID string) (*store.Resource, error) {
	r, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound(ReasonResourceNotFound, "resource not found")
		}
		return nil, err
	}
	if r.OwnerID != ownerID {
		return nil, NotFound(ReasonResourceNotFound, "resource not found")
	}
	return r, nil
}

// List returns the owner's stockpile.
func (s *Inventory) List(ctx context.Context, ownerID string) ([]*store.Resource, error) {
	return s.store.ListResourcesByOwner(ctx, ownerID)
}

// Update applies a partial update. Published offers keep their snapshot
// quantity; editing the resource never touches them.
func (s *Inventory) Update(ctx context.Context, ownerID, resourceID string, in UpdateResourceInput) (*store.Resource, error) {
	r, err := s.Get(ctx, ownerID, resourceID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, Validation(ReasonMissingField, "name must not be empty")
		}
		r.Name = *in.Name
	}
	if in.Category != nil {
		if !validCategories[*in.Category] {
			return nil, Validation(ReasonInvalidCategory, "unknown category %q", *in.Category)
		}
		r.Category = *in.Category
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, Validation(ReasonInvalidQuantity, "quantity must not be negative")
		}
		r.Quantity = *in.Quantity
	}
	if in.Unit != nil {
		r.Unit = *in.Unit
	}
	if in.ShelfLifeDays != nil {
		if *in.ShelfLifeDays < 0 {
			return nil, Validation(ReasonInvalidQuantity, "shelf life must not be negative")
		}
		r.ShelfLifeDays = *in.ShelfLifeDays
	}
	r.UpdatedAt = time.Now()

	if err := s.store.UpdateResource(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a resource. Rejected while any offer still references it
// in an active state.
func (s *Inventory) Delete(ctx context.Context, ownerID, resourceID string) error {
	return s.store.Tx(ctx, func(tx store.Store) error {
		r, err := tx.GetResource(ctx, resourceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound(ReasonResourceNotFound, "resource not found")
			}
			return err
		}
		if r.OwnerID != ownerID {
			return NotFound(ReasonResourceNotFound, "resource not found")
		}

		offers, err := tx.ListOffersByResource(ctx, resourceID)
		if err != nil {
			return err
		}
		for _, o := range offers {
			if o.Status == store.OfferAvailable || o.Status == store.OfferRequested {
				return Conflict(ReasonOfferHasActiveRequest,
					"resource has an active shared offer")
			}
		}

		return tx.DeleteResource(ctx, resourceID)
	})
}
