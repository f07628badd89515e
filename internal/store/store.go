// Package store provides persistence primitives and driver abstractions
// for resources, shared offers, resource requests, and notifications.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStale         = errors.New("stale state")
	ErrClosed        = errors.New("store closed")
)

// OfferStatus is the lifecycle state of a shared offer.
type OfferStatus string

const (
	OfferAvailable OfferStatus = "available"
	OfferRequested OfferStatus = "requested"
	OfferTaken     OfferStatus = "taken"
)

// RequestStatus is the lifecycle state of a resource request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
)

// Notification types.
const (
	NotificationMessage         = "message"
	NotificationResourceRequest = "resource_request"
	NotificationEmergency       = "emergency"
	NotificationSystem          = "system"
)

// Resource categories.
const (
	CategoryFood      = "food"
	CategoryWater     = "water"
	CategoryMedicine  = "medicine"
	CategoryEnergy    = "energy"
	CategoryTools     = "tools"
	CategoryMachinery = "machinery"
	CategoryOther     = "other"
)

// Resource is an item in a user's personal stockpile.
type Resource struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	OwnerID       string    `json:"owner_id" gorm:"index"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Quantity      float64   `json:"quantity"`
	Unit          string    `json:"unit"`
	ShelfLifeDays int       `json:"shelf_life_days"` // 0 = unlimited
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SharedOffer publishes a slice of a resource to one community.
// OfferedQuantity is a snapshot taken at publish time; later edits to the
// source resource do not flow through.
type SharedOffer struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	ResourceID      string      `json:"resource_id" gorm:"index"`
	OwnerID         string      `json:"owner_id" gorm:"index"`
	CommunityID     string      `json:"community_id" gorm:"index"`
	OfferedQuantity float64     `json:"offered_quantity"`
	Status          OfferStatus `json:"status" gorm:"index"`
	Version         int64       `json:"version"`
	AvailableUntil  *time.Time  `json:"available_until,omitempty"`
	Location        string      `json:"location,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ResourceRequest is one user's claim on a shared offer.
type ResourceRequest struct {
	ID                string        `json:"id" gorm:"primaryKey"`
	OfferID           string        `json:"offer_id" gorm:"index"`
	RequesterID       string        `json:"requester_id" gorm:"index"`
	RequestedQuantity float64       `json:"requested_quantity"`
	Status            RequestStatus `json:"status" gorm:"index"`
	Message           string        `json:"message,omitempty"`
	ResponseMessage   string        `json:"response_message,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	RespondedAt       *time.Time    `json:"responded_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
}

// Notification is a per-recipient record of a state transition.
type Notification struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	RecipientID string     `json:"recipient_id" gorm:"index"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	SenderName  string     `json:"sender_name,omitempty"`
	ActionURL   string     `json:"action_url,omitempty"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ResourceStore defines operations for stockpile persistence.
type ResourceStore interface {
	CreateResource(ctx context.Context, r *Resource) error
	GetResource(ctx context.Context, id string) (*Resource, error)
	UpdateResource(ctx context.Context, r *Resource) error
	DeleteResource(ctx context.Context, id string) error
	ListResourcesByOwner(ctx context.Context, ownerID string) ([]*Resource, error)
}

// OfferStore defines operations for shared offer persistence.
type OfferStore interface {
	CreateOffer(ctx context.Context, o *SharedOffer) error
	GetOffer(ctx context.Context, id string) (*SharedOffer, error)

	// UpdateOffer persists the offer and bumps its Version.
	UpdateOffer(ctx context.Context, o *SharedOffer) error

	DeleteOffer(ctx context.Context, id string) error

	// UpdateOfferStatusFrom moves the offer from one status to another as a
	// compare-and-swap. Returns ErrStale when the offer is no longer in the
	// expected status, ErrNotFound when it does not exist.
	UpdateOfferStatusFrom(ctx context.Context, id string, from, to OfferStatus) error

	ListOffersByCommunity(ctx context.Context, communityID string) ([]*SharedOffer, error)
	ListOffersByOwner(ctx context.Context, ownerID string) ([]*SharedOffer, error)
	ListOffersByResource(ctx context.Context, resourceID string) ([]*SharedOffer, error)
}

// RequestStore defines operations for resource request persistence.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *ResourceRequest) error
	GetRequest(ctx context.Context, id string) (*ResourceRequest, error)
	UpdateRequest(ctx context.Context, r *ResourceRequest) error

	// UpdateRequestStatusFrom is the CAS analogue of UpdateOfferStatusFrom.
	UpdateRequestStatusFrom(ctx context.Context, id string, from, to RequestStatus) error

	ListRequestsByOffer(ctx context.Context, offerID string) ([]*ResourceRequest, error)
	ListRequestsByRequester(ctx context.Context, requesterID string) ([]*ResourceRequest, error)

	// ListRequestsForOwner returns requests targeting offers owned by ownerID.
	ListRequestsForOwner(ctx context.Context, ownerID string) ([]*ResourceRequest, error)
}

// NotificationStore defines operations for notification persistence.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id string) (*Notification, error)

	// ListNotificationsByRecipient returns notifications newest-first.
	ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]*Notification, error)

	CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)
	DeleteNotification(ctx context.Context, id string) error
}

// Store aggregates the entity stores behind one transactional boundary.
type Store interface {
	ResourceStore
	OfferStore
	RequestStore
	NotificationStore

	// Tx runs fn as a serializable unit of work. Mutations made through the
	// Store passed to fn are applied atomically; returning an error rolls
	// them back. Calling Tx on the Store passed to fn joins the outer
	// transaction.
	Tx(ctx context.Context, fn func(Store) error) error
}

// Driver is a persistence backend. Implementations must be safe for
// concurrent use.
type Driver interface {
	Store

	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}
