// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prepshare/prepshare-go/internal/store"
)

// TestResource creates a test stockpile resource.
func TestResource(id string) *store.Resource {
	return &store.Resource{
		ID:            id,
		OwnerID:       "owner-1",
		Name:          "Bottled water",
		Category:      store.CategoryWater,
		Quantity:      24,
		Unit:          "liters",
		ShelfLifeDays: 365,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

// TestOffer creates a test shared offer.
func TestOffer(id string) *store.SharedOffer {
	return &store.SharedOffer{
		ID:              id,
		ResourceID:      "resource-1",
		OwnerID:         "owner-1",
		CommunityID:     "community-1",
		OfferedQuantity: 10,
		Status:          store.OfferAvailable,
		Version:         1,
		Location:        "garage",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// TestRequest creates a test resource request.
func TestRequest(id, offerID string) *store.ResourceRequest {
	return &store.ResourceRequest{
		ID:                id,
		OfferID:           offerID,
		RequesterID:       "requester-1",
		RequestedQuantity: 5,
		Status:            store.RequestPending,
		Message:           "need for the weekend",
		CreatedAt:         time.Now(),
	}
}

// TestNotification creates a test notification.
func TestNotification(id, recipientID string) *store.Notification {
	return &store.Notification{
		ID:          id,
		RecipientID: recipientID,
		Type:        store.NotificationResourceRequest,
		Title:       "New request",
		Content:     "someone asked for your water",
		ActionURL:   "/ui/offers/offer-1",
		CreatedAt:   time.Now(),
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	t.Run("ResourceCRUD", func(t *testing.T) {
		ResourceCRUD(t, ctx, driver)
	})
	t.Run("OfferCompareAndSwap", func(t *testing.T) {
		OfferCompareAndSwap(t, ctx, driver)
	})
	t.Run("RequestLifecycle", func(t *testing.T) {
		RequestLifecycle(t, ctx, driver)
	})
	t.Run("Notifications", func(t *testing.T) {
		Notifications(t, ctx, driver)
	})
	t.Run("TxRollback", func(t *testing.T) {
		TxRollback(t, ctx, driver)
	})
	t.Run("RequestsForOwner", func(t *testing.T) {
		RequestsForOwner(t, ctx, driver)
	})
}

// ResourceCRUD tests CRUD operations for resources.
func ResourceCRUD(t *testing.T, ctx context.Context, s store.Store) {
	r := TestResource("res-crud-1")

	if err := s.CreateResource(ctx, r); err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	got, err := s.GetResource(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetResource failed: %v", err)
	}
	if got.Name != r.Name || got.Quantity != r.Quantity {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	got.Quantity = 12
	if err := s.UpdateResource(ctx, got); err != nil {
		t.Fatalf("UpdateResource failed: %v", err)
	}
	got, _ = s.GetResource(ctx, r.ID)
	if got.Quantity != 12 {
		t.Errorf("expected quantity 12, got %v", got.Quantity)
	}

	list, err := s.ListResourcesByOwner(ctx, r.OwnerID)
	if err != nil {
		t.Fatalf("ListResourcesByOwner failed: %v", err)
	}
	if len(list) == 0 {
		t.Error("expected at least one resource in list")
	}
	other, err := s.ListResourcesByOwner(ctx, "someone-else")
	if err != nil {
		t.Fatalf("ListResourcesByOwner failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no resources for other owner, got %d", len(other))
	}

	if err := s.DeleteResource(ctx, r.ID); err != nil {
		t.Fatalf("DeleteResource failed: %v", err)
	}
	if _, err := s.GetResource(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteResource(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

// OfferCompareAndSwap tests status CAS and version bumping.
func OfferCompareAndSwap(t *testing.T, ctx context.Context, s store.Store) {
	o := TestOffer("offer-cas-1")

	if err := s.CreateOffer(ctx, o); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	if err := s.UpdateOfferStatusFrom(ctx, o.ID, store.OfferAvailable, store.OfferRequested); err != nil {
		t.Fatalf("UpdateOfferStatusFrom failed: %v", err)
	}

	got, err := s.GetOffer(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOffer failed: %v", err)
	}
	if got.Status != store.OfferRequested {
		t.Errorf("expected requested, got %s", got.Status)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2 after CAS, got %d", got.Version)
	}

	// Second CAS from the same precondition must observe the move.
	err = s.UpdateOfferStatusFrom(ctx, o.ID, store.OfferAvailable, store.OfferRequested)
	if !errors.Is(err, store.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}

	err = s.UpdateOfferStatusFrom(ctx, "missing-offer", store.OfferAvailable, store.OfferRequested)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got.Notes = "porch pickup"
	if err := s.UpdateOffer(ctx, got); err != nil {
		t.Fatalf("UpdateOffer failed: %v", err)
	}
	after, _ := s.GetOffer(ctx, o.ID)
	if after.Version != 3 {
		t.Errorf("expected version 3 after update, got %d", after.Version)
	}
	if after.Notes != "porch pickup" {
		t.Errorf("notes not persisted: %q", after.Notes)
	}

	if err := s.DeleteOffer(ctx, o.ID); err != nil {
		t.Fatalf("DeleteOffer failed: %v", err)
	}
}

// RequestLifecycle tests request CRUD and status CAS.
func RequestLifecycle(t *testing.T, ctx context.Context, s store.Store) {
	r := TestRequest("req-life-1", "offer-life-1")

	if err := s.CreateRequest(ctx, r); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	if err := s.UpdateRequestStatusFrom(ctx, r.ID, store.RequestPending, store.RequestApproved); err != nil {
		t.Fatalf("UpdateRequestStatusFrom failed: %v", err)
	}
	err := s.UpdateRequestStatusFrom(ctx, r.ID, store.RequestPending, store.RequestDenied)
	if !errors.Is(err, store.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}

	got, err := s.GetRequest(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.Status != store.RequestApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}

	now := time.Now()
	got.ResponseMessage = "come by tonight"
	got.RespondedAt = &now
	if err := s.UpdateRequest(ctx, got); err != nil {
		t.Fatalf("UpdateRequest failed: %v", err)
	}
	got, _ = s.GetRequest(ctx, r.ID)
	if got.ResponseMessage != "come by tonight" {
		t.Errorf("response message not persisted: %q", got.ResponseMessage)
	}
	if got.RespondedAt == nil {
		t.Error("responded_at not persisted")
	}

	byOffer, err := s.ListRequestsByOffer(ctx, r.OfferID)
	if err != nil {
		t.Fatalf("ListRequestsByOffer failed: %v", err)
	}
	if len(byOffer) != 1 {
		t.Errorf("expected 1 request by offer, got %d", len(byOffer))
	}
	byRequester, err := s.ListRequestsByRequester(ctx, r.RequesterID)
	if err != nil {
		t.Fatalf("ListRequestsByRequester failed: %v", err)
	}
	if len(byRequester) == 0 {
		t.Error("expected requests for requester")
	}
}

// Notifications tests notification persistence and read tracking.
func Notifications(t *testing.T, ctx context.Context, s store.Store) {
	n1 := TestNotification("notif-1", "recipient-1")
	n1.CreatedAt = time.Now().Add(-time.Hour)
	n2 := TestNotification("notif-2", "recipient-1")
	n3 := TestNotification("notif-3", "recipient-2")

	for _, n := range []*store.Notification{n1, n2, n3} {
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}

	list, err := s.ListNotificationsByRecipient(ctx, "recipient-1")
	if err != nil {
		t.Fatalf("ListNotificationsByRecipient failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].ID != "notif-2" {
		t.Errorf("expected newest first, got %s", list[0].ID)
	}

	count, err := s.CountUnreadNotifications(ctx, "recipient-1")
	if err != nil {
		t.Fatalf("CountUnreadNotifications failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 unread, got %d", count)
	}

	if err := s.MarkNotificationRead(ctx, "notif-1"); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	// Re-reading an already-read notification is a no-op.
	if err := s.MarkNotificationRead(ctx, "notif-1"); err != nil {
		t.Errorf("MarkNotificationRead on read notification: %v", err)
	}
	got, _ := s.GetNotification(ctx, "notif-1")
	if !got.IsRead || got.ReadAt == nil {
		t.Error("notification not marked read")
	}

	marked, err := s.MarkAllNotificationsRead(ctx, "recipient-1")
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead failed: %v", err)
	}
	if marked != 1 {
		t.Errorf("expected 1 newly marked, got %d", marked)
	}
	count, _ = s.CountUnreadNotifications(ctx, "recipient-1")
	if count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}

	// recipient-2 untouched.
	count, _ = s.CountUnreadNotifications(ctx, "recipient-2")
	if count != 1 {
		t.Errorf("expected recipient-2 to keep 1 unread, got %d", count)
	}

	if err := s.DeleteNotification(ctx, "notif-3"); err != nil {
		t.Fatalf("DeleteNotification failed: %v", err)
	}
	if _, err := s.GetNotification(ctx, "notif-3"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TxRollback verifies that a failed transaction leaves no trace and a
// successful one applies all writes.
func TxRollback(t *testing.T, ctx context.Context, s store.Store) {
	boom := fmt.Errorf("boom")

	err := s.Tx(ctx, func(tx store.Store) error {
		if err := tx.CreateOffer(ctx, TestOffer("offer-tx-rollback")); err != nil {
			return err
		}
		if err := tx.CreateRequest(ctx, TestRequest("req-tx-rollback", "offer-tx-rollback")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetOffer(ctx, "offer-tx-rollback"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rolled-back offer still visible: %v", err)
	}
	if _, err := s.GetRequest(ctx, "req-tx-rollback"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rolled-back request still visible: %v", err)
	}

	err = s.Tx(ctx, func(tx store.Store) error {
		if err := tx.CreateOffer(ctx, TestOffer("offer-tx-commit")); err != nil {
			return err
		}
		return tx.UpdateOfferStatusFrom(ctx, "offer-tx-commit", store.OfferAvailable, store.OfferRequested)
	})
	if err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	got, err := s.GetOffer(ctx, "offer-tx-commit")
	if err != nil {
		t.Fatalf("GetOffer after commit failed: %v", err)
	}
	if got.Status != store.OfferRequested {
		t.Errorf("expected committed status requested, got %s", got.Status)
	}
}

// RequestsForOwner verifies the owner-side request listing crosses the
// offer table correctly.
func RequestsForOwner(t *testing.T, ctx context.Context, s store.Store) {
	mine := TestOffer("offer-owner-mine")
	mine.OwnerID = "owner-alpha"
	theirs := TestOffer("offer-owner-theirs")
	theirs.OwnerID = "owner-beta"

	if err := s.CreateOffer(ctx, mine); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if err := s.CreateOffer(ctx, theirs); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if err := s.CreateRequest(ctx, TestRequest("req-owner-1", mine.ID)); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if err := s.CreateRequest(ctx, TestRequest("req-owner-2", theirs.ID)); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	got, err := s.ListRequestsForOwner(ctx, "owner-alpha")
	if err != nil {
		t.Fatalf("ListRequestsForOwner failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "req-owner-1" {
		t.Errorf("unexpected owner requests: %+v", got)
	}
}
