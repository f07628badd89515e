package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prepshare/prepshare-go/internal/identity"
	"github.com/prepshare/prepshare-go/internal/platform/logutil"
	"github.com/prepshare/prepshare-go/internal/platform/metrics"
	"github.com/prepshare/prepshare-go/internal/store"
)

// PartyDirectory resolves user IDs to profiles for notification text.
// Satisfied by identity.PartyRepo.
type PartyDirectory interface {
	Get(ctx context.Context, id string) (*identity.User, error)
}

// Dispatcher turns post-commit transition events into stored notifications,
// exactly one per recipient per event. Delivery is best-effort: a failure
// is logged and dropped, never propagated back into the transition.
type Dispatcher struct {
	store   store.NotificationStore
	parties PartyDirectory
	baseURL string
	log     *slog.Logger
}

// NewDispatcher creates a dispatcher. baseURL is the external origin plus
// base path, e.g. "https://prep.example.com".
func NewDispatcher(st store.NotificationStore, parties PartyDirectory, baseURL string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   st,
		parties: parties,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logutil.NoopIfNil(log),
	}
}

// Dispatch writes one notification per event.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) {
	for _, ev := range events {
		n := d.render(ctx, ev)
		if err := d.store.CreateNotification(ctx, n); err != nil {
			metrics.NotificationsFailed.Inc()
			d.log.Warn("notification delivery failed",
				"type", string(ev.Type),
				"recipient_id", ev.RecipientID,
				"request_id", ev.RequestID,
				"error", err)
			continue
		}
		metrics.NotificationsDispatched.Inc()
		d.log.Debug("notification dispatched",
			"type", string(ev.Type),
			"recipient_id", ev.RecipientID,
			"notification_id", n.ID)
	}
}

func (d *Dispatcher) render(ctx context.Context, ev Event) *store.Notification {
	sender := d.senderName(ctx, ev.ActorID)
	amount := formatAmount(ev.Quantity, ev.Unit)

	var title, content string
	switch ev.Type {
	case EventRequestSubmitted:
		title = "New request for your offer"
		content = fmt.Sprintf("%s requested %s of %s", sender, amount, ev.ResourceName)
		if ev.Message != "" {
			content += ": " + ev.Message
		}
	case EventRequestApproved:
		title = "Your request was approved"
		content = fmt.Sprintf("%s approved your request for %s of %s", sender, amount, ev.ResourceName)
		if ev.Message != "" {
			content += ": " + ev.Message
		}
	case EventRequestDenied:
		title = "Your request was denied"
		content = fmt.Sprintf("%s denied your request for %s", sender, ev.ResourceName)
		if ev.Message != "" {
			content += ": " + ev.Message
		}
	case EventRequestAutoDenied:
		title = "Your request was denied"
		content = fmt.Sprintf("%s went to another request", ev.ResourceName)
	case EventRequestCompleted:
		title = "Handover completed"
		content = fmt.Sprintf("%s of %s changed hands", amount, ev.ResourceName)
	case EventRequestCancelled:
		title = "A request was cancelled"
		content = fmt.Sprintf("%s cancelled their request for %s", sender, ev.ResourceName)
	default:
		title = "Update"
		content = fmt.Sprintf("activity on %s", ev.ResourceName)
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	return &store.Notification{
		ID:          identity.UUIDv7(),
		RecipientID: ev.RecipientID,
		Type:        store.NotificationResourceRequest,
		Title:       title,
		Content:     content,
		SenderName:  sender,
		ActionURL:   d.actionURL(ev),
		CreatedAt:   occurred,
	}
}

// actionURL points the recipient at the entity they act on: owners land on
// the offer, requesters on their request.
func (d *Dispatcher) actionURL(ev Event) string {
	if ev.RecipientIsOwner {
		return d.baseURL + "/ui/offers/" + ev.OfferID
	}
	return d.baseURL + "/ui/requests/" + ev.RequestID
}

func (d *Dispatcher) senderName(ctx context.Context, actorID string) string {
	if d.parties == nil || actorID == "" {
		return "Someone"
	}
	u, err := d.parties.Get(ctx, actorID)
	if err != nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}

func formatAmount(quantity float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%g", quantity)
	}
	return fmt.Sprintf("%g %s", quantity, unit)
}

// Notifications is the recipient-scoped read side of the dispatcher.
type Notifications struct {
	store store.NotificationStore
}

func NewNotifications(st store.NotificationStore) *Notifications {
	return &Notifications{store: st}
}

// List returns the recipient's notifications, newest first.
func (n *Notifications) List(ctx context.Context, recipientID string) ([]*store.Notification, error) {
	return n.store.ListNotificationsByRecipient(ctx, recipientID)
}

// UnreadCount returns the number of unread notifications.
func (n *Notifications) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return n.store.CountUnreadNotifications(ctx, recipientID)
}

// MarkRead marks one owned notification as read.
func (n *Notifications) MarkRead(ctx context.Context, recipientID, id string) error {
	if err := n.ownedBy(ctx, recipientID, id); err != nil {
		return err
	}
	return n.store.MarkNotificationRead(ctx, id)
}

// MarkAllRead marks everything unread as read; returns the count affected.
func (n *Notifications) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return n.store.MarkAllNotificationsRead(ctx, recipientID)
}

// Delete removes one owned notification.
func (n *Notifications) Delete(ctx context.Context, recipientID, id string) error {
	if err := n.ownedBy(ctx, recipientID, id); err != nil {
		return err
	}
	return n.store.DeleteNotification(ctx, id)
}

// ownedBy hides other users' notifications behind not-found.
func (n *Notifications) ownedBy(ctx context.Context, recipientID, id string) error {
	got, err := n.store.GetNotification(ctx, id)
	if err != nil {
		return NotFound(ReasonNotificationNotFound, "notification not found")
	}
	if got.RecipientID != recipientID {
		return NotFound(ReasonNotificationNotFound, "notification not found")
	}
	return nil
}
