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

// Memberships answers community membership questions. Satisfied by
// identity.CommunityRepo.
type Memberships interface {
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
}

// SharingRegistry publishes slices of a stockpile to a community. The
// offered quantity is a snapshot; later edits to the source resource do not
// flow through to published offers.
type SharingRegistry struct {
	store   store.Store
	members Memberships
	log     *slog.Logger
}

func NewSharingRegistry(st store.Store, members Memberships, log *slog.Logger) *SharingRegistry {
	return &SharingRegistry{store: st, members: members, log: logutil.NoopIfNil(log)}
}

// PublishInput describes a new shared offer.
type PublishInput struct {
	ResourceID     string
	CommunityID    string
	Quantity       float64
	AvailableUntil *time.Time
	Location       string
	Notes          string
}

// ReviseInput is a partial update to an available offer.
type ReviseInput struct {
	Quantity       *float64
	AvailableUntil *time.Time
	Location       *string
	Notes          *string
}

// Publish creates an offer from an owned resource into a community the
// actor belongs to.
func (s *SharingRegistry) Publish(ctx context.Context, actorID string, in PublishInput) (*store.SharedOffer, error) {
	if in.ResourceID == "" {
		return nil, Validation(ReasonMissingField, "resource_id is required")
	}
	if in.CommunityID == "" {
		return nil, Validation(ReasonMissingField, "community_id is required")
	}
	if in.Quantity <= 0 {
		return nil, Validation(ReasonInvalidQuantity, "offered quantity must be positive")
	}

	member, err := s.members.IsMember(ctx, in.CommunityID, actorID)
	if err != nil && !errors.Is(err, identity.ErrCommunityNotFound) {
		return nil, err
	}
	if !member {
		return nil, Authorization(ReasonNotCommunityMember, "not a member of this community")
	}

	var offer *store.SharedOffer
	err = s.store.Tx(ctx, func(tx store.Store) error {
		r, err := tx.GetResource(ctx, in.ResourceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound(ReasonResourceNotFound, "resource not found")
			}
			return err
		}
		if r.OwnerID != actorID {
			return NotFound(ReasonResourceNotFound, "resource not found")
		}
		if in.Quantity > r.Quantity {
			return Conflict(ReasonInsufficientQuantity,
				"offered quantity %g exceeds stock %g", in.Quantity, r.Quantity)
		}

		now := time.Now()
		offer = &store.SharedOffer{
			ID:              identity.UUIDv7(),
			ResourceID:      r.ID,
			OwnerID:         actorID,
			CommunityID:     in.CommunityID,
			OfferedQuantity: in.Quantity,
			Status:          store.OfferAvailable,
			Version:         1,
			AvailableUntil:  in.AvailableUntil,
			Location:        in.Location,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("offer published",
		"offer_id", offer.ID,
		"owner_id", actorID,
		"community_id", in.CommunityID,
		"quantity", in.Quantity)
	return offer, nil
}

// Revise edits an offer. Owner-only, and only while the offer is still
// available.
func (s *SharingRegistry) Revise(ctx context.Context, actorID, offerID string, in ReviseInput) (*store.SharedOffer, error) {
	var offer *store.SharedOffer
	err := s.store.Tx(ctx, func(tx store.Store) error {
		o, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound(ReasonOfferNotFound, "offer not found")
			}
			return err
		}
		if o.OwnerID != actorID {
			return Authorization(ReasonNotOwner, "only the owner can revise an offer")
		}
		if o.Status != store.OfferAvailable {
			return Conflict(ReasonOfferNotEditable, "offer is %s and can no longer be edited", o.Status)
		}

		if in.Quantity != nil {
			if *in.Quantity <= 0 {
				return Validation(ReasonInvalidQuantity, "offered quantity must be positive")
			}
			r, err := tx.GetResource(ctx, o.ResourceID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return NotFound(ReasonResourceNotFound, "source resource no longer exists")
				}
				return err
			}
			if *in.Quantity > r.Quantity {
				return Conflict(ReasonInsufficientQuantity,
					"offered quantity %g exceeds stock %g", *in.Quantity, r.Quantity)
			}
			o.OfferedQuantity = *in.Quantity
		}
		if in.AvailableUntil != nil {
			o.AvailableUntil = in.AvailableUntil
		}
		if in.Location != nil {
			o.Location = *in.Location
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
		}

		if err := tx.UpdateOffer(ctx, o); err != nil {
			return err
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// Withdraw removes an offer. Rejected while any request on it is still
// pending or approved.
func (s *SharingRegistry) Withdraw(ctx context.Context, actorID, offerID string) error {
	err := s.store.Tx(ctx, func(tx store.Store) error {
		o, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound(ReasonOfferNotFound, "offer not found")
			}
			return err
		}
		if o.OwnerID != actorID {
			return Authorization(ReasonNotOwner, "only the owner can withdraw an offer")
		}

		requests, err := tx.ListRequestsByOffer(ctx, offerID)
		if err != nil {
			return err
		}
		for _, r := range requests {
			if r.Status == store.RequestPending || r.Status == store.RequestApproved {
				return Conflict(ReasonOfferHasActiveRequest, "offer has an active request")
			}
		}

		return tx.DeleteOffer(ctx, offerID)
	})
	if err != nil {
		return err
	}

	s.log.Info("offer withdrawn", "offer_id", offerID, "owner_id", actorID)
	return nil
}

// Get returns an offer visible to the actor: its owner, or any member of
// the offer's community.
func (s *SharingRegistry) Get(ctx context.Context, actorID, offerID string) (*store.SharedOffer, error) {
	o, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound(ReasonOfferNotFound, "offer not found")
		}
		return nil, err
	}
	if o.OwnerID == actorID {
		return o, nil
	}
	member, err := s.members.IsMember(ctx, o.CommunityID, actorID)
	if err != nil && !errors.Is(err, identity.ErrCommunityNotFound) {
		return nil, err
	}
	if !member {
		return nil, NotFound(ReasonOfferNotFound, "offer not found")
	}
	return o, nil
}

// ListByCommunity returns a community's offers. Membership required.
func (s *SharingRegistry) ListByCommunity(ctx context.Context, actorID, communityID string) ([]*store.SharedOffer, error) {
	member, err := s.members.IsMember(ctx, communityID, actorID)
	if err != nil && !errors.Is(err, identity.ErrCommunityNotFound) {
		return nil, err
	}
	if !member {
		return nil, Authorization(ReasonNotCommunityMember, "not a member of this community")
	}
	return s.store.ListOffersByCommunity(ctx, communityID)
}

// ListByOwner returns the actor's own offers.
func (s *SharingRegistry) ListByOwner(ctx context.Context, actorID string) ([]*store.SharedOffer, error) {
	return s.store.ListOffersByOwner(ctx, actorID)
}
