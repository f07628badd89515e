package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prepshare/prepshare-go/internal/identity"
	"github.com/prepshare/prepshare-go/internal/store"
	_ "github.com/prepshare/prepshare-go/internal/store/memory"
)

// fixture wires the engine against the memory driver with three users in
// one community: an offer owner, a requester, and a bystander.
type fixture struct {
	ctx           context.Context
	store         store.Driver
	parties       *identity.MemoryPartyRepo
	communities   *identity.MemoryCommunityRepo
	inventory     *Inventory
	sharing       *SharingRegistry
	coordinator   *RequestCoordinator
	notifications *Notifications

	owner     *identity.User
	requester *identity.User
	other     *identity.User
	outsider  *identity.User
	community *identity.Community
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create memory driver: %v", err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init driver: %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	f := &fixture{
		ctx:         ctx,
		store:       driver,
		parties:     identity.NewMemoryPartyRepo(),
		communities: identity.NewMemoryCommunityRepo(),
	}

	f.owner = f.addUser(t, "alice", "Alice")
	f.requester = f.addUser(t, "bob", "Bob")
	f.other = f.addUser(t, "carol", "Carol")
	f.outsider = f.addUser(t, "mallory", "Mallory")

	f.community = &identity.Community{Name: "Oak Street", CreatedBy: f.owner.ID}
	if err := f.communities.Create(ctx, f.community); err != nil {
		t.Fatalf("failed to create community: %v", err)
	}
	for _, u := range []*identity.User{f.requester, f.other} {
		if err := f.communities.Join(ctx, f.community.ID, u.ID); err != nil {
			t.Fatalf("failed to join community: %v", err)
		}
	}

	dispatcher := NewDispatcher(driver, f.parties, "https://prep.example.com", nil)
	f.inventory = NewInventory(driver, nil)
	f.sharing = NewSharingRegistry(driver, f.communities, nil)
	f.coordinator = NewRequestCoordinator(driver, f.communities, dispatcher, nil)
	f.notifications = NewNotifications(driver)
	return f
}

func (f *fixture) addUser(t *testing.T, username, display string) *identity.User {
	t.Helper()
	u := &identity.User{Username: username, DisplayName: display}
	if err := f.parties.Create(f.ctx, u); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func (f *fixture) addResource(t *testing.T, ownerID, category string, quantity float64) *store.Resource {
	t.Helper()
	r, err := f.inventory.Add(f.ctx, ownerID, AddResourceInput{
		Name:     category + " stock",
		Category: category,
		Quantity: quantity,
		Unit:     "units",
	})
	if err != nil {
		t.Fatalf("failed to add resource: %v", err)
	}
	return r
}

func (f *fixture) publish(t *testing.T, ownerID, resourceID string, quantity float64) *store.SharedOffer {
	t.Helper()
	o, err := f.sharing.Publish(f.ctx, ownerID, PublishInput{
		ResourceID:  resourceID,
		CommunityID: f.community.ID,
		Quantity:    quantity,
	})
	if err != nil {
		t.Fatalf("failed to publish offer: %v", err)
	}
	return o
}

func (f *fixture) request(t *testing.T, requesterID, offerID string, quantity float64) *store.ResourceRequest {
	t.Helper()
	r, err := f.coordinator.Create(f.ctx, requesterID, CreateRequestInput{
		OfferID:  offerID,
		Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return r
}

func wantEngineError(t *testing.T, err error, kind Kind, reason string) {
	t.Helper()
	e, ok := As(err)
	if !ok {
		t.Fatalf("expected engine error %s/%s, got %v", kind, reason, err)
	}
	if e.Kind != kind || e.Reason != reason {
		t.Fatalf("expected %s/%s, got %s/%s (%s)", kind, reason, e.Kind, e.Reason, e.Message)
	}
}

func TestPublishSnapshotsQuantity(t *testing.T) {
	f := newFixture(t)

	res := f.addResource(t, f.owner.ID, store.CategoryWater, 24)
	offer := f.publish(t, f.owner.ID, res.ID, 10)

	if offer.Status != store.OfferAvailable {
		t.Errorf("expected available, got %s", offer.Status)
	}
	if offer.Version != 1 {
		t.Errorf("expected version 1, got %d", offer.Version)
	}

	// Draining the stockpile after publish leaves the offer untouched.
	q := 2.0
	if _, err := f.inventory.Update(f.ctx, f.owner.ID, res.ID, UpdateResourceInput{Quantity: &q}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.OfferedQuantity != 10 {
		t.Errorf("snapshot broken: offered quantity %g", got.OfferedQuantity)
	}
}

func TestPublishValidation(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 5)

	_, err := f.sharing.Publish(f.ctx, f.owner.ID, PublishInput{
		ResourceID: res.ID, CommunityID: f.community.ID, Quantity: 0,
	})
	wantEngineError(t, err, KindValidation, ReasonInvalidQuantity)

	_, err = f.sharing.Publish(f.ctx, f.owner.ID, PublishInput{
		ResourceID: res.ID, CommunityID: f.community.ID, Quantity: 6,
	})
	wantEngineError(t, err, KindConflict, ReasonInsufficientQuantity)

	_, err = f.sharing.Publish(f.ctx, f.outsider.ID, PublishInput{
		ResourceID: res.ID, CommunityID: f.community.ID, Quantity: 1,
	})
	wantEngineError(t, err, KindAuthorization, ReasonNotCommunityMember)

	// A member publishing someone else's resource sees not-found.
	_, err = f.sharing.Publish(f.ctx, f.requester.ID, PublishInput{
		ResourceID: res.ID, CommunityID: f.community.ID, Quantity: 1,
	})
	wantEngineError(t, err, KindNotFound, ReasonResourceNotFound)
}

func TestReviseGating(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryTools, 10)
	offer := f.publish(t, f.owner.ID, res.ID, 4)

	loc := "front porch"
	revised, err := f.sharing.Revise(f.ctx, f.owner.ID, offer.ID, ReviseInput{Location: &loc})
	if err != nil {
		t.Fatalf("Revise failed: %v", err)
	}
	if revised.Location != "front porch" {
		t.Errorf("location not updated: %q", revised.Location)
	}
	if revised.Version != 2 {
		t.Errorf("expected version bump to 2, got %d", revised.Version)
	}

	_, err = f.sharing.Revise(f.ctx, f.requester.ID, offer.ID, ReviseInput{Location: &loc})
	wantEngineError(t, err, KindAuthorization, ReasonNotOwner)

	big := 11.0
	_, err = f.sharing.Revise(f.ctx, f.owner.ID, offer.ID, ReviseInput{Quantity: &big})
	wantEngineError(t, err, KindConflict, ReasonInsufficientQuantity)

	// Once the offer is claimed it is frozen.
	req := f.request(t, f.requester.ID, offer.ID, 2)
	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	_, err = f.sharing.Revise(f.ctx, f.owner.ID, offer.ID, ReviseInput{Location: &loc})
	wantEngineError(t, err, KindConflict, ReasonOfferNotEditable)
}

func TestWithdrawBlockedByActiveRequest(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryMedicine, 10)
	offer := f.publish(t, f.owner.ID, res.ID, 5)
	req := f.request(t, f.requester.ID, offer.ID, 3)

	err := f.sharing.Withdraw(f.ctx, f.owner.ID, offer.ID)
	wantEngineError(t, err, KindConflict, ReasonOfferHasActiveRequest)

	if _, err := f.coordinator.Deny(f.ctx, f.owner.ID, req.ID, "sorry"); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}
	if err := f.sharing.Withdraw(f.ctx, f.owner.ID, offer.ID); err != nil {
		t.Fatalf("Withdraw after deny failed: %v", err)
	}
	_, err = f.sharing.Get(f.ctx, f.owner.ID, offer.ID)
	wantEngineError(t, err, KindNotFound, ReasonOfferNotFound)
}

func TestOfferVisibilityScopedToCommunity(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryEnergy, 3)
	offer := f.publish(t, f.owner.ID, res.ID, 1)

	if _, err := f.sharing.Get(f.ctx, f.requester.ID, offer.ID); err != nil {
		t.Errorf("member should see offer: %v", err)
	}
	_, err := f.sharing.Get(f.ctx, f.outsider.ID, offer.ID)
	wantEngineError(t, err, KindNotFound, ReasonOfferNotFound)

	_, err = f.sharing.ListByCommunity(f.ctx, f.outsider.ID, f.community.ID)
	wantEngineError(t, err, KindAuthorization, ReasonNotCommunityMember)

	offers, err := f.sharing.ListByCommunity(f.ctx, f.requester.ID, f.community.ID)
	if err != nil {
		t.Fatalf("ListByCommunity failed: %v", err)
	}
	if len(offers) != 1 {
		t.Errorf("expected 1 offer, got %d", len(offers))
	}
}

func TestInventoryOwnerScoping(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 5)

	_, err := f.inventory.Get(f.ctx, f.requester.ID, res.ID)
	wantEngineError(t, err, KindNotFound, ReasonResourceNotFound)

	_, err = f.inventory.Update(f.ctx, f.requester.ID, res.ID, UpdateResourceInput{})
	wantEngineError(t, err, KindNotFound, ReasonResourceNotFound)

	err = f.inventory.Delete(f.ctx, f.requester.ID, res.ID)
	wantEngineError(t, err, KindNotFound, ReasonResourceNotFound)
}

func TestInventoryValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventory.Add(f.ctx, f.owner.ID, AddResourceInput{Category: store.CategoryFood})
	wantEngineError(t, err, KindValidation, ReasonMissingField)

	_, err = f.inventory.Add(f.ctx, f.owner.ID, AddResourceInput{Name: "x", Category: "weapons"})
	wantEngineError(t, err, KindValidation, ReasonInvalidCategory)

	_, err = f.inventory.Add(f.ctx, f.owner.ID, AddResourceInput{
		Name: "x", Category: store.CategoryFood, Quantity: -1,
	})
	wantEngineError(t, err, KindValidation, ReasonInvalidQuantity)
}

func TestInventoryDeleteBlockedByActiveOffer(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryWater, 20)
	offer := f.publish(t, f.owner.ID, res.ID, 5)

	err := f.inventory.Delete(f.ctx, f.owner.ID, res.ID)
	wantEngineError(t, err, KindConflict, ReasonOfferHasActiveRequest)

	// Run the offer through to taken; then the resource can go.
	req := f.request(t, f.requester.ID, offer.ID, 5)
	if _, err := f.coordinator.Approve(f.ctx, f.owner.ID, req.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	err = f.inventory.Delete(f.ctx, f.owner.ID, res.ID)
	wantEngineError(t, err, KindConflict, ReasonOfferHasActiveRequest)

	if _, err := f.coordinator.Complete(f.ctx, f.requester.ID, req.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := f.inventory.Delete(f.ctx, f.owner.ID, res.ID); err != nil {
		t.Fatalf("Delete after completion failed: %v", err)
	}
}

func TestAvailableUntilRoundtrip(t *testing.T) {
	f := newFixture(t)
	res := f.addResource(t, f.owner.ID, store.CategoryFood, 8)

	until := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	offer, err := f.sharing.Publish(f.ctx, f.owner.ID, PublishInput{
		ResourceID:     res.ID,
		CommunityID:    f.community.ID,
		Quantity:       2,
		AvailableUntil: &until,
		Notes:          "pickup only",
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got, err := f.sharing.Get(f.ctx, f.requester.ID, offer.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AvailableUntil == nil || !got.AvailableUntil.Equal(until) {
		t.Errorf("available_until mismatch: %v", got.AvailableUntil)
	}
	if got.Notes != "pickup only" {
		t.Errorf("notes mismatch: %q", got.Notes)
	}
}
