package engine

import (
	"context"
	"time"
)

// EventType names a state transition worth telling someone about.
type EventType string

const (
	EventRequestSubmitted  EventType = "request_submitted"
	EventRequestApproved   EventType = "request_approved"
	EventRequestDenied     EventType = "request_denied"
	EventRequestAutoDenied EventType = "request_auto_denied"
	EventRequestCompleted  EventType = "request_completed"
	EventRequestCancelled  EventType = "request_cancelled"
)

// Event is emitted by the coordinator after a transition commits. One event
// targets exactly one recipient.
type Event struct {
	Type        EventType
	RecipientID string
	ActorID     string

	OfferID   string
	RequestID string

	// RecipientIsOwner selects the owner-facing or requester-facing view
	// (and action URL) when rendering the notification.
	RecipientIsOwner bool

	ResourceName string
	Quantity     float64
	Unit         string
	Message      string

	OccurredAt time.Time
}

// EventSink consumes post-commit events. Implementations must not fail the
// calling operation; delivery is best-effort.
type EventSink interface {
	Dispatch(ctx context.Context, events []Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, events []Event)

func (f SinkFunc) Dispatch(ctx context.Context, events []Event) { f(ctx, events) }
