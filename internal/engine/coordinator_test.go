package engine

import (
	"sync"
	"testing"

	"github.com/prepshare/prepshare-go/internal/store"
)

func TestCreateRequestRules(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryWater, 24)
	offer := f.publish(t, f.owner.ID, res.ID, 10)

	_, err := f.coordinator.Create(f.ctx, f.owner.ID, CreateRequestInput{OfferID: offer.ID, Quantity: 1})
	wantEngineError(t, err, KindValidation, ReasonSelfRequest)

	_, err = f.coordinator.Create(f.ctx, f.outsider.ID, CreateRequestInput{OfferID: offer.ID, Quantity: 1})
	wantEngineError(t, err, KindAuthorization, ReasonNotCommunityMember)

	_, err = f.coordinator.Create(f.ctx, f.requester.ID, CreateRequestInput{OfferID: offer.ID, Quantity: 11})
	wantEngineError(t, err, KindValidation, ReasonQuantityExceedsOffer)

	_, err = f.coordinator.Create(f.ctx, f.requester.ID, CreateRequestInput{OfferID: offer.ID, Quantity: 0})
	wantEngineError(t, err, KindValidation, ReasonInvalidQuantity)

	// Multiple pending requests on the same offer are legal.
	r1 := f.request(t, f.requester.ID, offer.ID, 5)
	r2 := f.request(t, f.other.ID, offer.ID, 10)
	if r1.Status != store.RequestPending || r2.Status != store.RequestPending {
		t.Errorf("expected both pending, got %s and %s", r1.Status, r2.Status)
	}

	// The owner heard about each of them.
	count, err := f.notifications.UnreadCount(f.ctx, f.owner.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 owner notifications, got %d", count)
	}
}

func TestApproveAutoDeniesSiblings(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 20)
	offer := f.publish(t, f.owner.ID, res.ID, 10)

	winner := f.request(t, f.requester.ID, offer.ID, 4)
	loser := f.request(t, f.other.ID, offer.ID, 6)

	approved, err := f.coordinator.Approve(f.ctx, f.owner.ID, winner.ID, "first come first served")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != store.RequestApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.ResponseMessage != "first come first served" {
		t.Errorf("response message lost: %q", approved.ResponseMessage)
	}
	if approved.RespondedAt == nil {
		t.Error("responded_at not set")
	}

	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferRequested {
		t.Errorf("expected offer requested, got %s", gotOffer.Status)
	}

	gotLoser, err := f.coordinator.Get(f.ctx, f.other.ID, loser.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotLoser.Status != store.RequestDenied {
		t.Errorf("sibling not auto-denied: %s", gotLoser.Status)
	}

	// Winner got an approval, loser a denial. Exactly one each.
	winnerNotifs, _ := f.notifications.List(f.ctx, f.requester.ID)
	if len(winnerNotifs) != 1 {
		t.Errorf("expected 1 notification for winner, got %d", len(winnerNotifs))
	}
	loserNotifs, _ := f.notifications.List(f.ctx, f.other.ID)
	if len(loserNotifs) != 1 {
		t.Errorf("expected 1 notification for loser, got %d", len(loserNotifs))
	}

	// Approving the displaced request now conflicts without side effects.
	_, err = f.coordinator.Approve(f.ctx, f.owner.ID, loser.ID, "")
	wantEngineError(t, err, KindConflict, ReasonRequestNotPending)

	// Re-approving the winner conflicts too.
	_, err = f.coordinator.Approve(f.ctx, f.owner.ID, winner.ID, "")
	wantEngineError(t, err, KindConflict, ReasonRequestNotPending)
}

func TestApproveAuthorization(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryTools, 5)
	offer := f.publish(t, f.owner.ID, res.ID, 2)
	req := f.request(t, f.requester.ID, offer.ID, 1)

	_, err := f.coordinator.Approve(f.ctx, f.requester.ID, req.ID, "")
	wantEngineError(t, err, KindAuthorization, ReasonNotOwner)

	_, err = f.coordinator.Deny(f.ctx, f.other.ID, req.ID, "")
	wantEngineError(t, err, KindAuthorization, ReasonNotOwner)
}

func TestConcurrentApproveSingleWinner(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryWater, 100)
	offer := f.publish(t, f.owner.ID, res.ID, 50)

	requesters := []*struct {
		userID string
		reqID  string
	}{
		{userID: f.requester.ID},
		{userID: f.other.ID},
	}
	for _, r := range requesters {
		req := f.request(t, r.userID, offer.ID, 10)
		r.reqID = req.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(requesters))
	for _, r := range requesters {
		wg.Add(1)
		go func(reqID string) {
			defer wg.Done()
			_, err := f.coordinator.Approve(f.ctx, f.owner.ID, reqID, "")
			errs <- err
		}(r.reqID)
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		if IsConflict(err) {
			conflicts++
			continue
		}
		t.Errorf("unexpected error: %v", err)
	}
	if wins != 1 || conflicts != 1 {
		t.Errorf("expected 1 win and 1 conflict, got %d/%d", wins, conflicts)
	}

	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferRequested {
		t.Errorf("expected offer requested, got %s", gotOffer.Status)
	}

	var approvedCount int
	for _, r := range requesters {
		req, err := f.coordinator.Get(f.ctx, f.owner.ID, r.reqID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if req.Status == store.RequestApproved {
			approvedCount++
		}
	}
	if approvedCount != 1 {
		t.Errorf("expected exactly one approved request, got %d", approvedCount)
	}
}

func TestDenyKeepsOfferAvailable(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryMedicine, 5)
	offer := f.publish(t, f.owner.ID, res.ID, 2)
	req := f.request(t, f.requester.ID, offer.ID, 1)

	denied, err := f.coordinator.Deny(f.ctx, f.owner.ID, req.ID, "need it myself")
	if err != nil {
		t.Fatalf("Deny failed: %v", err)
	}
	if denied.Status != store.RequestDenied {
		t.Errorf("expected denied, got %s", denied.Status)
	}

	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferAvailable {
		t.Errorf("deny must not claim the offer: %s", gotOffer.Status)
	}

	// Denied requests stay denied.
	_, err = f.coordinator.Deny(f.ctx, f.owner.ID, req.ID, "")
	wantEngineError(t, err, KindConflict, ReasonRequestNotPending)
}

func TestCompleteDecrementsStockExactly(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 20)
	offer := f.publish(t, f.owner.ID, res.ID, 10)
	req := f.request(t, f.requester.ID, offer.ID, 7)

	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	completed, err := f.coordinator.Complete(f.ctx, f.requester.ID, req.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != store.RequestCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	gotRes, _ := f.inventory.Get(f.ctx, f.owner.ID, res.ID)
	if gotRes.Quantity != 13 {
		t.Errorf("expected 20-7=13, got %g", gotRes.Quantity)
	}

	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferTaken {
		t.Errorf("expected taken, got %s", gotOffer.Status)
	}

	// The owner (the counterparty) was told.
	notifs, _ := f.notifications.List(f.ctx, f.owner.ID)
	var sawCompleted bool
	for _, n := range notifs {
		if n.Title == "Handover completed" {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Error("owner did not hear about completion")
	}
}

func TestCompleteGating(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryWater, 10)
	offer := f.publish(t, f.owner.ID, res.ID, 5)
	req := f.request(t, f.requester.ID, offer.ID, 5)

	// Pending requests cannot complete.
	_, err := f.coordinator.Complete(f.ctx, f.requester.ID, req.ID)
	wantEngineError(t, err, KindConflict, ReasonRequestNotApproved)

	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	// Bystanders cannot complete.
	_, err = f.coordinator.Complete(f.ctx, f.other.ID, req.ID)
	wantEngineError(t, err, KindAuthorization, ReasonNotRequester)

	// The owner can complete on the requester's behalf.
	if _, err := f.coordinator.Complete(f.ctx, f.owner.ID, req.ID); err != nil {
		t.Fatalf("owner Complete failed: %v", err)
	}

	// And this time the requester was told.
	notifs, _ := f.notifications.List(f.ctx, f.requester.ID)
	var sawCompleted bool
	for _, n := range notifs {
		if n.Title == "Handover completed" {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Error("requester did not hear about completion")
	}
}

func TestCompleteInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 10)
	offer := f.publish(t, f.owner.ID, res.ID, 10)
	req := f.request(t, f.requester.ID, offer.ID, 10)

	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	// The owner consumed most of the stock in the meantime.
	q := 3.0
	if _, err := f.inventory.Update(f.ctx, f.owner.ID, res.ID, UpdateResourceInput{Quantity: &q}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, err := f.coordinator.Complete(f.ctx, f.requester.ID, req.ID)
	wantEngineError(t, err, KindConflict, ReasonInsufficientQuantity)

	// Nothing moved: stock intact, offer still claimed, request approved.
	gotRes, _ := f.inventory.Get(f.ctx, f.owner.ID, res.ID)
	if gotRes.Quantity != 3 {
		t.Errorf("stock mutated on failed completion: %g", gotRes.Quantity)
	}
	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferRequested {
		t.Errorf("offer status mutated: %s", gotOffer.Status)
	}
	gotReq, _ := f.coordinator.Get(f.ctx, f.requester.ID, req.ID)
	if gotReq.Status != store.RequestApproved {
		t.Errorf("request status mutated: %s", gotReq.Status)
	}
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryTools, 5)
	offer := f.publish(t, f.owner.ID, res.ID, 3)
	req := f.request(t, f.requester.ID, offer.ID, 1)

	_, err := f.coordinator.Cancel(f.ctx, f.owner.ID, req.ID)
	wantEngineError(t, err, KindAuthorization, ReasonNotRequester)

	cancelled, err := f.coordinator.Cancel(f.ctx, f.requester.ID, req.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != store.RequestCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("cancelled_at not set")
	}

	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferAvailable {
		t.Errorf("offer should stay available, got %s", gotOffer.Status)
	}
}

func TestCancelApprovedReturnsOfferToMarket(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryWater, 12)
	offer := f.publish(t, f.owner.ID, res.ID, 6)
	req := f.request(t, f.requester.ID, offer.ID, 6)

	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := f.coordinator.Cancel(f.ctx, f.requester.ID, req.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	gotOffer, _ := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if gotOffer.Status != store.OfferAvailable {
		t.Errorf("approved-cancel must free the offer, got %s", gotOffer.Status)
	}

	// A completed request cannot be cancelled.
	req2 := f.request(t, f.other.ID, offer.ID, 2)
	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req2.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := f.coordinator.Complete(f.ctx, f.other.ID, req2.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	_, err := f.coordinator.Cancel(f.ctx, f.other.ID, req2.ID)
	wantEngineError(t, err, KindConflict, ReasonRequestNotPending)
}

func TestRequestVisibility(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 10)
	offer := f.publish(t, f.owner.ID, res.ID, 5)
	req := f.request(t, f.requester.ID, offer.ID, 2)

	if _, err := f.coordinator.Get(f.ctx, f.requester.ID, req.ID); err != nil {
		t.Errorf("requester should see own request: %v", err)
	}
	if _, err := f.coordinator.Get(f.ctx, f.owner.ID, req.ID); err != nil {
		t.Errorf("owner should see request on own offer: %v", err)
	}
	_, err := f.coordinator.Get(f.ctx, f.other.ID, req.ID)
	wantEngineError(t, err, KindNotFound, ReasonRequestNotFound)

	mine, err := f.coordinator.ListMine(f.ctx, f.requester.ID)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListMine: %v, %d items", err, len(mine))
	}
	received, err := f.coordinator.ListReceived(f.ctx, f.owner.ID)
	if err != nil || len(received) != 1 {
		t.Errorf("ListReceived: %v, %d items", err, len(received))
	}

	_, err = f.coordinator.ListByOffer(f.ctx, f.requester.ID, offer.ID)
	wantEngineError(t, err, KindAuthorization, ReasonNotOwner)
	byOffer, err := f.coordinator.ListByOffer(f.ctx, f.owner.ID, offer.ID)
	if err != nil || len(byOffer) != 1 {
		t.Errorf("ListByOffer: %v, %d items", err, len(byOffer))
	}
}
