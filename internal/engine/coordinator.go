package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prepshare/prepshare-go/internal/identity"
	"github.com/prepshare/prepshare-go/internal/platform/logutil"
	"github.com/prepshare/prepshare-go/internal/platform/metrics"
	"github.com/prepshare/prepshare-go/internal/store"
)

// RequestCoordinator arbitrates competing claims on shared offers. Every
// mutation runs inside a store transaction; transition events are handed to
// the sink only after the transaction commits.
type RequestCoordinator struct {
	store   store.Store
	members Memberships
	sink    EventSink
	log     *slog.Logger
}

func NewRequestCoordinator(st store.Store, members Memberships, sink EventSink, log *slog.Logger) *RequestCoordinator {
	return &RequestCoordinator{
		store:   st,
		members: members,
		sink:    sink,
		log:     logutil.NoopIfNil(log),
	}
}

// CreateRequestInput describes a new claim on an offer.
type CreateRequestInput struct {
	OfferID  string
	Quantity float64
	Message  string
}

func (c *RequestCoordinator) emit(ctx context.Context, events []Event) {
	if c.sink == nil || len(events) == 0 {
		return
	}
	c.sink.Dispatch(ctx, events)
}

// resourceName resolves the offer's source resource name for notification
// text. The resource is a weak reference, so a missing row degrades to a
// generic label instead of failing the transition.
func resourceName(ctx context.Context, tx store.Store, resourceID string) (string, string) {
	r, err := tx.GetResource(ctx, resourceID)
	if err != nil {
		return "a shared resource", ""
	}
	return r.Name, r.Unit
}

// Create submits a pending request against an available offer. Multiple
// pending requests on the same offer are legal; arbitration happens at
// Approve.
func (c *RequestCoordinator) Create(ctx context.Context, actorID string, in CreateRequestInput) (*store.ResourceRequest, error) {
	if in.OfferID == "" {
		return nil, Validation(ReasonMissingField, "offer_id is required")
	}
	if in.Quantity <= 0 {
		return nil, Validation(ReasonInvalidQuantity, "requested quantity must be positive")
	}

	var (
		request *store.ResourceRequest
		events  []Event
	)
	err := c.store.Tx(ctx, func(tx store.Store) error {
		offer, err := tx.GetOffer(ctx, in.OfferID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound(ReasonOfferNotFound, "offer not found")
			}
			return err
		}

		member, err := c.members.IsMember(ctx, offer.CommunityID, actorID)
		if err != nil && !errors.Is(err, identity.ErrCommunityNotFound) {
			return err
		}
		if !member {
			return Authorization(ReasonNotCommunityMember, "not a member of this community")
		}
		if offer.OwnerID == actorID {
			return Validation(ReasonSelfRequest, "cannot request your own offer")
		}
		if offer.Status != store.OfferAvailable {
			return Conflict(ReasonOfferNotAvailable, "offer is %s", offer.Status)
		}
		if in.Quantity > offer.OfferedQuantity {
			return Validation(ReasonQuantityExceedsOffer,
				"requested quantity %g exceeds offered %g", in.Quantity, offer.OfferedQuantity)
		}

		request = &store.ResourceRequest{
			ID:                identity.UUIDv7(),
			OfferID:           offer.ID,
			RequesterID:       actorID,
			RequestedQuantity: in.Quantity,
			Status:            store.RequestPending,
			Message:           in.Message,
			CreatedAt:         time.Now(),
		}
		if err := tx.CreateRequest(ctx, request); err != nil {
			return err
		}

		name, unit := resourceName(ctx, tx, offer.ResourceID)
		events = append(events, Event{
			Type:             EventRequestSubmitted,
			RecipientID:      offer.OwnerID,
			ActorID:          actorID,
			OfferID:          offer.ID,
			RequestID:        request.ID,
			RecipientIsOwner: true,
			ResourceName:     name,
			Quantity:         in.Quantity,
			Unit:             unit,
			Message:          in.Message,
			OccurredAt:       request.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("request_submitted").Inc()
	c.log.Info("request submitted",
		"request_id", request.ID, "offer_id", in.OfferID, "requester_id", actorID)
	c.emit(ctx, events)
	return request, nil
}

// Approve grants one pending request the offer. The offer moves
// available→requested, the request pending→approved, and every sibling
// pending request is denied in the same transaction. Losing the race for
// the offer is a conflict, not corruption.
func (c *RequestCoordinator) Approve(ctx context.Context, actorID, requestID, responseMessage string) (*store.ResourceRequest, error) {
	var (
		request *store.ResourceRequest
		events  []Event
	)
	err := c.store.Tx(ctx, func(tx store.Store) error {
		events = events[:0]

		req, offer, err := c.loadPair(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if offer.OwnerID != actorID {
			return Authorization(ReasonNotOwner, "only the offer owner can approve")
		}
		if req.Status != store.RequestPending {
			return Conflict(ReasonRequestNotPending, "request is %s", req.Status)
		}

		// Claim the offer first; this is the arbitration point.
		if err := tx.UpdateOfferStatusFrom(ctx, offer.ID, store.OfferAvailable, store.OfferRequested); err != nil {
			if errors.Is(err, store.ErrStale) {
				return Conflict(ReasonOfferNotAvailable, "offer is no longer available")
			}
			return err
		}
		if err := tx.UpdateRequestStatusFrom(ctx, req.ID, store.RequestPending, store.RequestApproved); err != nil {
			if errors.Is(err, store.ErrStale) {
				return Conflict(ReasonRequestNotPending, "request is no longer pending")
			}
			return err
		}

		now := time.Now()
		req.Status = store.RequestApproved
		req.ResponseMessage = responseMessage
		req.RespondedAt = &now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		name, unit := resourceName(ctx, tx, offer.ResourceID)
		events = append(events, Event{
			Type:         EventRequestApproved,
			RecipientID:  req.RequesterID,
			ActorID:      actorID,
			OfferID:      offer.ID,
			RequestID:    req.ID,
			ResourceName: name,
			Quantity:     req.RequestedQuantity,
			Unit:         unit,
			Message:      responseMessage,
			OccurredAt:   now,
		})

		// Everyone else still pending on this offer loses.
		siblings, err := tx.ListRequestsByOffer(ctx, offer.ID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.ID == req.ID || sib.Status != store.RequestPending {
				continue
			}
			if err := tx.UpdateRequestStatusFrom(ctx, sib.ID, store.RequestPending, store.RequestDenied); err != nil {
				return err
			}
			sib.Status = store.RequestDenied
			sib.RespondedAt = &now
			if err := tx.UpdateRequest(ctx, sib); err != nil {
				return err
			}
			events = append(events, Event{
				Type:         EventRequestAutoDenied,
				RecipientID:  sib.RequesterID,
				ActorID:      actorID,
				OfferID:      offer.ID,
				RequestID:    sib.ID,
				ResourceName: name,
				Quantity:     sib.RequestedQuantity,
				Unit:         unit,
				OccurredAt:   now,
			})
		}

		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("request_approved").Inc()
	c.log.Info("request approved",
		"request_id", requestID, "owner_id", actorID, "auto_denied", len(events)-1)
	c.emit(ctx, events)
	return request, nil
}

// Deny rejects a pending request. The offer stays available.
func (c *RequestCoordinator) Deny(ctx context.Context, actorID, requestID, responseMessage string) (*store.ResourceRequest, error) {
	var (
		request *store.ResourceRequest
		events  []Event
	)
	err := c.store.Tx(ctx, func(tx store.Store) error {
		events = events[:0]

		req, offer, err := c.loadPair(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if offer.OwnerID != actorID {
			return Authorization(ReasonNotOwner, "only the offer owner can deny")
		}
		if req.Status != store.RequestPending {
			return Conflict(ReasonRequestNotPending, "request is %s", req.Status)
		}

		if err := tx.UpdateRequestStatusFrom(ctx, req.ID, store.RequestPending, store.RequestDenied); err != nil {
			if errors.Is(err, store.ErrStale) {
				return Conflict(ReasonRequestNotPending, "request is no longer pending")
			}
			return err
		}

		now := time.Now()
		req.Status = store.RequestDenied
		req.ResponseMessage = responseMessage
		req.RespondedAt = &now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		name, unit := resourceName(ctx, tx, offer.ResourceID)
		events = append(events, Event{
			Type:         EventRequestDenied,
			RecipientID:  req.RequesterID,
			ActorID:      actorID,
			OfferID:      offer.ID,
			RequestID:    req.ID,
			ResourceName: name,
			Quantity:     req.RequestedQuantity,
			Unit:         unit,
			Message:      responseMessage,
			OccurredAt:   now,
		})
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("request_denied").Inc()
	c.emit(ctx, events)
	return request, nil
}

// Complete records the physical handover of an approved request. The offer
// moves requested→taken and the source resource quantity is decremented by
// exactly the requested amount; stock never goes negative.
func (c *RequestCoordinator) Complete(ctx context.Context, actorID, requestID string) (*store.ResourceRequest, error) {
	var (
		request *store.ResourceRequest
		events  []Event
	)
	err := c.store.Tx(ctx, func(tx store.Store) error {
		events = events[:0]

		req, offer, err := c.loadPair(ctx, tx, requestID)
		if err != nil {
			return err
		}
		isOwner := offer.OwnerID == actorID
		isRequester := req.RequesterID == actorID
		if !isOwner && !isRequester {
			return Authorization(ReasonNotRequester, "only the requester or the owner can complete")
		}
		if req.Status != store.RequestApproved {
			return Conflict(ReasonRequestNotApproved, "request is %s", req.Status)
		}

		r, err := tx.GetResource(ctx, offer.ResourceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Conflict(ReasonInsufficientQuantity, "source resource no longer exists")
			}
			return err
		}
		if r.Quantity < req.RequestedQuantity {
			return Conflict(ReasonInsufficientQuantity,
				"stock %g cannot cover requested %g", r.Quantity, req.RequestedQuantity)
		}

		if err := tx.UpdateOfferStatusFrom(ctx, offer.ID, store.OfferRequested, store.OfferTaken); err != nil {
			if errors.Is(err, store.ErrStale) {
				return Conflict(ReasonOfferNotAvailable, "offer is not in a completable state")
			}
			return err
		}
		if err := tx.UpdateRequestStatusFrom(ctx, req.ID, store.RequestApproved, store.RequestCompleted); err != nil {
			if errors.Is(err, store.ErrStale) {
				return Conflict(ReasonRequestNotApproved, "request is no longer approved")
			}
			return err
		}

		r.Quantity -= req.RequestedQuantity
		r.UpdatedAt = time.Now()
		if err := tx.UpdateResource(ctx, r); err != nil {
			return err
		}

		now := time.Now()
		req.Status = store.RequestCompleted
		req.CompletedAt = &now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		// Tell the party who did not perform the action.
		recipient := req.RequesterID
		recipientIsOwner := false
		if isRequester {
			recipient = offer.OwnerID
			recipientIsOwner = true
		}
		events = append(events, Event{
			Type:             EventRequestCompleted,
			RecipientID:      recipient,
			ActorID:          actorID,
			OfferID:          offer.ID,
			RequestID:        req.ID,
			RecipientIsOwner: recipientIsOwner,
			ResourceName:     r.Name,
			Quantity:         req.RequestedQuantity,
			Unit:             r.Unit,
			OccurredAt:       now,
		})
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("request_completed").Inc()
	c.log.Info("request completed", "request_id", requestID, "actor_id", actorID)
	c.emit(ctx, events)
	return request, nil
}

// Cancel withdraws the actor's own request, from pending or approved.
// Cancelling an approved request puts the offer back on the market.
func (c *RequestCoordinator) Cancel(ctx context.Context, actorID, requestID string) (*store.ResourceRequest, error) {
	var (
		request *store.ResourceRequest
		events  []Event
	)
	err := c.store.Tx(ctx, func(tx store.Store) error {
		events = events[:0]

		req, offer, err := c.loadPair(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != actorID {
			return Authorization(ReasonNotRequester, "only the requester can cancel")
		}

		switch req.Status {
		case store.RequestPending:
			if err := tx.UpdateRequestStatusFrom(ctx, req.ID, store.RequestPending, store.RequestCancelled); err != nil {
				return err
			}
		case store.RequestApproved:
			if err := tx.UpdateRequestStatusFrom(ctx, req.ID, store.RequestApproved, store.RequestCancelled); err != nil {
				return err
			}
			if err := tx.UpdateOfferStatusFrom(ctx, offer.ID, store.OfferRequested, store.OfferAvailable); err != nil {
				return err
			}
		default:
			return Conflict(ReasonRequestNotPending, "request is %s", req.Status)
		}

		now := time.Now()
		req.Status = store.RequestCancelled
		req.CancelledAt = &now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		name, unit := resourceName(ctx, tx, offer.ResourceID)
		events = append(events, Event{
			Type:             EventRequestCancelled,
			RecipientID:      offer.OwnerID,
			ActorID:          actorID,
			OfferID:          offer.ID,
			RequestID:        req.ID,
			RecipientIsOwner: true,
			ResourceName:     name,
			Quantity:         req.RequestedQuantity,
			Unit:             unit,
			OccurredAt:       now,
		})
		request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transitions.WithLabelValues("request_cancelled").Inc()
	c.emit(ctx, events)
	return request, nil
}

// Get returns a request visible to the actor: its requester or the owner
// of the target offer.
func (c *RequestCoordinator) Get(ctx context.Context, actorID, requestID string) (*store.ResourceRequest, error) {
	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound(ReasonRequestNotFound, "request not found")
		}
		return nil, err
	}
	if req.RequesterID == actorID {
		return req, nil
	}
	offer, err := c.store.GetOffer(ctx, req.OfferID)
	if err == nil && offer.OwnerID == actorID {
		return req, nil
	}
	return nil, NotFound(ReasonRequestNotFound, "request not found")
}

// ListMine returns requests the actor has made.
func (c *RequestCoordinator) ListMine(ctx context.Context, actorID string) ([]*store.ResourceRequest, error) {
	return c.store.ListRequestsByRequester(ctx, actorID)
}

// ListReceived returns requests targeting the actor's offers.
func (c *RequestCoordinator) ListReceived(ctx context.Context, actorID string) ([]*store.ResourceRequest, error) {
	return c.store.ListRequestsForOwner(ctx, actorID)
}

// ListByOffer returns all requests on an offer. Owner-only.
func (c *RequestCoordinator) ListByOffer(ctx context.Context, actorID, offerID string) ([]*store.ResourceRequest, error) {
	offer, err := c.store.GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound(ReasonOfferNotFound, "offer not found")
		}
		return nil, err
	}
	if offer.OwnerID != actorID {
		return nil, Authorization(ReasonNotOwner, "only the owner can list an offer's requests")
	}
	return c.store.ListRequestsByOffer(ctx, offerID)
}

// loadPair fetches a request and its target offer.
func (c *RequestCoordinator) loadPair(ctx context.Context, tx store.Store, requestID string) (*store.ResourceRequest, *store.SharedOffer, error) {
	req, err := tx.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, NotFound(ReasonRequestNotFound, "request not found")
		}
		return nil, nil, err
	}
	offer, err := tx.GetOffer(ctx, req.OfferID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, NotFound(ReasonOfferNotFound, "offer not found")
		}
		return nil, nil, err
	}
	return req, offer, nil
}
