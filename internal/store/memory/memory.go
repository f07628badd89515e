// Package memory implements a map-based persistence driver. All mutations
// take a single write lock, so Tx bodies execute serializably.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prepshare/prepshare-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{core: newCore()}, nil
}

// Driver implements store.Driver over in-memory maps. Every public method
// takes the driver lock; Tx holds it for the whole body and hands fn an
// unlocked view of the same tables.
type Driver struct {
	mu     sync.Mutex
	closed bool
	core   *core
}

func (d *Driver) Name() string { return "memory" }

func (d *Driver) Init(ctx context.Context) error { return nil }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) Tx(ctx context.Context, fn func(store.Store) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}

	// Snapshot for rollback. Tables are maps of pointers to copies, so a
	// shallow map copy is enough: mutations replace entries.
	snap := d.core.snapshot()
	if err := fn(&txStore{core: d.core}); err != nil {
		d.core.restore(snap)
		return err
	}
	return nil
}

func (d *Driver) do(fn func(*core) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	return fn(d.core)
}

// ResourceStore

func (d *Driver) CreateResource(ctx context.Context, r *store.Resource) error {
	return d.do(func(c *core) error { return c.createResource(r) })
}

func (d *Driver) GetResource(ctx context.Context, id string) (*store.Resource, error) {
	var out *store.Resource
	err := d.do(func(c *core) error {
		var err error
		out, err = c.getResource(id)
		return err
	})
	return out, err
}

func (d *Driver) UpdateResource(ctx context.Context, r *store.Resource) error {
	return d.do(func(c *core) error { return c.updateResource(r) })
}

func (d *Driver) DeleteResource(ctx context.Context, id string) error {
	return d.do(func(c *core) error { return c.deleteResource(id) })
}

func (d *Driver) ListResourcesByOwner(ctx context.Context, ownerID string) ([]*store.Resource, error) {
	var out []*store.Resource
	err := d.do(func(c *core) error {
		out = c.listResourcesByOwner(ownerID)
		return nil
	})
	return out, err
}

// OfferStore

func (d *Driver) CreateOffer(ctx context.Context, o *store.SharedOffer) error {
	return d.do(func(c *core) error { return c.createOffer(o) })
}

func (d *Driver) GetOffer(ctx context.Context, id string) (*store.SharedOffer, error) {
	var out *store.SharedOffer
	err := d.do(func(c *core) error {
		var err error
		out, err = c.getOffer(id)
		return err
	})
	return out, err
}

func (d *Driver) UpdateOffer(ctx context.Context, o *store.SharedOffer) error {
	return d.do(func(c *core) error { return c.updateOffer(o) })
}

func (d *Driver) DeleteOffer(ctx context.Context, id string) error {
	return d.do(func(c *core) error { return c.deleteOffer(id) })
}

func (d *Driver) UpdateOfferStatusFrom(ctx context.Context, id string, from, to store.OfferStatus) error {
	return d.do(func(c *core) error { return c.updateOfferStatusFrom(id, from, to) })
}

func (d *Driver) ListOffersByCommunity(ctx context.Context, communityID string) ([]*store.SharedOffer, error) {
	var out []*store.SharedOffer
	err := d.do(func(c *core) error {
		out = c.listOffers(func(o *store.SharedOffer) bool { return o.CommunityID == communityID })
		return nil
	})
	return out, err
}

func (d *Driver) ListOffersByOwner(ctx context.Context, ownerID string) ([]*store.SharedOffer, error) {
	var out []*store.SharedOffer
	err := d.do(func(c *core) error {
		out = c.listOffers(func(o *store.SharedOffer) bool { return o.OwnerID == ownerID })
		return nil
	})
	return out, err
}

func (d *Driver) ListOffersByResource(ctx context.Context, resourceID string) ([]*store.SharedOffer, error) {
	var out []*store.SharedOffer
	err := d.do(func(c *core) error {
		out = c.listOffers(func(o *store.SharedOffer) bool { return o.ResourceID == resourceID })
		return nil
	})
	return out, err
}

// RequestStore

func (d *Driver) CreateRequest(ctx context.Context, r *store.ResourceRequest) error {
	return d.do(func(c *core) error { return c.createRequest(r) })
}

func (d *Driver) GetRequest(ctx context.Context, id string) (*store.ResourceRequest, error) {
	var out *store.ResourceRequest
	err := d.do(func(c *core) error {
		var err error
		out, err = c.getRequest(id)
		return err
	})
	return out, err
}

func (d *Driver) UpdateRequest(ctx context.Context, r *store.ResourceRequest) error {
	return d.do(func(c *core) error { return c.updateRequest(r) })
}

func (d *Driver) UpdateRequestStatusFrom(ctx context.Context, id string, from, to store.RequestStatus) error {
	return d.do(func(c *core) error { return c.updateRequestStatusFrom(id, from, to) })
}

func (d *Driver) ListRequestsByOffer(ctx context.Context, offerID string) ([]*store.ResourceRequest, error) {
	var out []*store.ResourceRequest
	err := d.do(func(c *core) error {
		out = c.listRequests(func(r *store.ResourceRequest) bool { return r.OfferID == offerID })
		return nil
	})
	return out, err
}

func (d *Driver) ListRequestsByRequester(ctx context.Context, requesterID string) ([]*store.ResourceRequest, error) {
	var out []*store.ResourceRequest
	err := d.do(func(c *core) error {
		out = c.listRequests(func(r *store.ResourceRequest) bool { return r.RequesterID == requesterID })
		return nil
	})
	return out, err
}

func (d *Driver) ListRequestsForOwner(ctx context.Context, ownerID string) ([]*store.ResourceRequest, error) {
	var out []*store.ResourceRequest
	err := d.do(func(c *core) error {
		out = c.listRequestsForOwner(ownerID)
		return nil
	})
	return out, err
}

// NotificationStore

func (d *Driver) CreateNotification(ctx context.Context, n *store.Notification) error {
	return d.do(func(c *core) error { return c.createNotification(n) })
}

func (d *Driver) GetNotification(ctx context.Context, id string) (*store.Notification, error) {
	var out *store.Notification
	err := d.do(func(c *core) error {
		var err error
		out, err = c.getNotification(id)
		return err
	})
	return out, err
}

func (d *Driver) ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]*store.Notification, error) {
	var out []*store.Notification
	err := d.do(func(c *core) error {
		out = c.listNotificationsByRecipient(recipientID)
		return nil
	})
	return out, err
}

func (d *Driver) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var out int64
	err := d.do(func(c *core) error {
		out = c.countUnreadNotifications(recipientID)
		return nil
	})
	return out, err
}

func (d *Driver) MarkNotificationRead(ctx context.Context, id string) error {
	return d.do(func(c *core) error { return c.markNotificationRead(id) })
}

func (d *Driver) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	var out int64
	err := d.do(func(c *core) error {
		out = c.markAllNotificationsRead(recipientID)
		return nil
	})
	return out, err
}

func (d *Driver) DeleteNotification(ctx context.Context, id string) error {
	return d.do(func(c *core) error { return c.deleteNotification(id) })
}

// txStore is the unlocked view handed to Tx bodies. The driver lock is
// already held.
type txStore struct {
	core *core
}

func (t *txStore) Tx(ctx context.Context, fn func(store.Store) error) error {
	// Already inside a transaction; join it.
	return fn(t)
}

func (t *txStore) CreateResource(ctx context.Context, r *store.Resource) error {
	return t.core.createResource(r)
}

func (t *txStore) GetResource(ctx context.Context, id string) (*store.Resource, error) {
	return t.core.getResource(id)
}

func (t *txStore) UpdateResource(ctx context.Context, r *store.Resource) error {
	return t.core.updateResource(r)
}

func (t *txStore) DeleteResource(ctx context.Context, id string) error {
	return t.core.deleteResource(id)
}

func (t *txStore) ListResourcesByOwner(ctx context.Context, ownerID string) ([]*store.Resource, error) {
	return t.core.listResourcesByOwner(ownerID), nil
}

func (t *txStore) CreateOffer(ctx context.Context, o *store.SharedOffer) error {
	return t.core.createOffer(o)
}

func (t *txStore) GetOffer(ctx context.Context, id string) (*store.SharedOffer, error) {
	return t.core.getOffer(id)
}

func (t *txStore) UpdateOffer(ctx context.Context, o *store.SharedOffer) error {
	return t.core.updateOffer(o)
}

func (t *txStore) DeleteOffer(ctx context.Context, id string) error {
	return t.core.deleteOffer(id)
}

func (t *txStore) UpdateOfferStatusFrom(ctx context.Context, id string, from, to store.OfferStatus) error {
	return t.core.updateOfferStatusFrom(id, from, to)
}

func (t *txStore) ListOffersByCommunity(ctx context.Context, communityID string) ([]*store.SharedOffer, error) {
	return t.core.listOffers(func(o *store.SharedOffer) bool { return o.CommunityID == communityID }), nil
}

func (t *txStore) ListOffersByOwner(ctx context.Context, ownerID string) ([]*store.SharedOffer, error) {
	return t.core.listOffers(func(o *store.SharedOffer) bool { return o.OwnerID == ownerID }), nil
}

func (t *txStore) ListOffersByResource(ctx context.Context, resourceID string) ([]*store.SharedOffer, error) {
	return t.core.listOffers(func(o *store.SharedOffer) bool { return o.ResourceID == resourceID }), nil
}

func (t *txStore) CreateRequest(ctx context.Context, r *store.ResourceRequest) error {
	return t.core.createRequest(r)
}

func (t *txStore) GetRequest(ctx context.Context, id string) (*store.ResourceRequest, error) {
	return t.core.getRequest(id)
}

func (t *txStore) UpdateRequest(ctx context.Context, r *store.ResourceRequest) error {
	return t.core.updateRequest(r)
}

func (t *txStore) UpdateRequestStatusFrom(ctx context.Context, id string, from, to store.RequestStatus) error {
	return t.core.updateRequestStatusFrom(id, from, to)
}

func (t *txStore) ListRequestsByOffer(ctx context.Context, offerID string) ([]*store.ResourceRequest, error) {
	return t.core.listRequests(func(r *store.ResourceRequest) bool { return r.OfferID == offerID }), nil
}

func (t *txStore) ListRequestsByRequester(ctx context.Context, requesterID string) ([]*store.ResourceRequest, error) {
	return t.core.listRequests(func(r *store.ResourceRequest) bool { return r.RequesterID == requesterID }), nil
}

func (t *txStore) ListRequestsForOwner(ctx context.Context, ownerID string) ([]*store.ResourceRequest, error) {
	return t.core.listRequestsForOwner(ownerID), nil
}

func (t *txStore) CreateNotification(ctx context.Context, n *store.Notification) error {
	return t.core.createNotification(n)
}

func (t *txStore) GetNotification(ctx context.Context, id string) (*store.Notification, error) {
	return t.core.getNotification(id)
}

func (t *txStore) ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]*store.Notification, error) {
	return t.core.listNotificationsByRecipient(recipientID), nil
}

func (t *txStore) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	return t.core.countUnreadNotifications(recipientID), nil
}

func (t *txStore) MarkNotificationRead(ctx context.Context, id string) error {
	return t.core.markNotificationRead(id)
}

func (t *txStore) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	return t.core.markAllNotificationsRead(recipientID), nil
}

func (t *txStore) DeleteNotification(ctx context.Context, id string) error {
	return t.core.deleteNotification(id)
}

// core holds the tables. Callers hold the driver lock.
type core struct {
	resources     map[string]*store.Resource
	offers        map[string]*store.SharedOffer
	requests      map[string]*store.ResourceRequest
	notifications map[string]*store.Notification
}

func newCore() *core {
	return &core{
		resources:     make(map[string]*store.Resource),
		offers:        make(map[string]*store.SharedOffer),
		requests:      make(map[string]*store.ResourceRequest),
		notifications: make(map[string]*store.Notification),
	}
}

type coreSnapshot struct {
	resources     map[string]*store.Resource
	offers        map[string]*store.SharedOffer
	requests      map[string]*store.ResourceRequest
	notifications map[string]*store.Notification
}

func (c *core) snapshot() coreSnapshot {
	snap := coreSnapshot{
		resources:     make(map[string]*store.Resource, len(c.resources)),
		offers:        make(map[string]*store.SharedOffer, len(c.offers)),
		requests:      make(map[string]*store.ResourceRequest, len(c.requests)),
		notifications: make(map[string]*store.Notification, len(c.notifications)),
	}
	for k, v := range c.resources {
		snap.resources[k] = v
	}
	for k, v := range c.offers {
		snap.offers[k] = v
	}
	for k, v := range c.requests {
		snap.requests[k] = v
	}
	for k, v := range c.notifications {
		snap.notifications[k] = v
	}
	return snap
}

func (c *core) restore(snap coreSnapshot) {
	c.resources = snap.resources
	c.offers = snap.offers
	c.requests = snap.requests
	c.notifications = snap.notifications
}

func (c *core) createResource(r *store.Resource) error {
	if _, exists := c.resources[r.ID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *r
	c.resources[r.ID] = &cp
	return nil
}

func (c *core) getResource(id string) (*store.Resource, error) {
	r, ok := c.resources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (c *core) updateResource(r *store.Resource) error {
	if _, ok := c.resources[r.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *r
	c.resources[r.ID] = &cp
	return nil
}

func (c *core) deleteResource(id string) error {
	if _, ok := c.resources[id]; !ok {
		return store.ErrNotFound
	}
	delete(c.resources, id)
	return nil
}

func (c *core) listResourcesByOwner(ownerID string) []*store.Resource {
	out := make([]*store.Resource, 0)
	for _, r := range c.resources {
		if r.OwnerID == ownerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *core) createOffer(o *store.SharedOffer) error {
	if _, exists := c.offers[o.ID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *o
	c.offers[o.ID] = &cp
	return nil
}

func (c *core) getOffer(id string) (*store.SharedOffer, error) {
	o, ok := c.offers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (c *core) updateOffer(o *store.SharedOffer) error {
	existing, ok := c.offers[o.ID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *o
	cp.Version = existing.Version + 1
	cp.UpdatedAt = time.Now()
	c.offers[o.ID] = &cp
	*o = cp
	return nil
}

func (c *core) deleteOffer(id string) error {
	if _, ok := c.offers[id]; !ok {
		return store.ErrNotFound
	}
	delete(c.offers, id)
	return nil
}

func (c *core) updateOfferStatusFrom(id string, from, to store.OfferStatus) error {
	existing, ok := c.offers[id]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Status != from {
		return store.ErrStale
	}
	cp := *existing
	cp.Status = to
	cp.Version = existing.Version + 1
	cp.UpdatedAt = time.Now()
	c.offers[id] = &cp
	return nil
}

func (c *core) listOffers(match func(*store.SharedOffer) bool) []*store.SharedOffer {
	out := make([]*store.SharedOffer, 0)
	for _, o := range c.offers {
		if match(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *core) createRequest(r *store.ResourceRequest) error {
	if _, exists := c.requests[r.ID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *r
	c.requests[r.ID] = &cp
	return nil
}

func (c *core) getRequest(id string) (*store.ResourceRequest, error) {
	r, ok := c.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (c *core) updateRequest(r *store.ResourceRequest) error {
	if _, ok := c.requests[r.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *r
	c.requests[r.ID] = &cp
	return nil
}

func (c *core) updateRequestStatusFrom(id string, from, to store.RequestStatus) error {
	existing, ok := c.requests[id]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Status != from {
		return store.ErrStale
	}
	cp := *existing
	cp.Status = to
	c.requests[id] = &cp
	return nil
}

func (c *core) listRequests(match func(*store.ResourceRequest) bool) []*store.ResourceRequest {
	out := make([]*store.ResourceRequest, 0)
	for _, r := range c.requests {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *core) listRequestsForOwner(ownerID string) []*store.ResourceRequest {
	owned := make(map[string]struct{})
	for _, o := range c.offers {
		if o.OwnerID == ownerID {
			owned[o.ID] = struct{}{}
		}
	}
	return c.listRequests(func(r *store.ResourceRequest) bool {
		_, ok := owned[r.OfferID]
		return ok
	})
}

func (c *core) createNotification(n *store.Notification) error {
	if _, exists := c.notifications[n.ID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *n
	c.notifications[n.ID] = &cp
	return nil
}

func (c *core) getNotification(id string) (*store.Notification, error) {
	n, ok := c.notifications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (c *core) listNotificationsByRecipient(recipientID string) []*store.Notification {
	out := make([]*store.Notification, 0)
	for _, n := range c.notifications {
		if n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	// Newest first; UUIDv7 ids are time-ordered so the ID is the tiebreak.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (c *core) countUnreadNotifications(recipientID string) int64 {
	var count int64
	for _, n := range c.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count
}

func (c *core) markNotificationRead(id string) error {
	n, ok := c.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	if n.IsRead {
		return nil
	}
	cp := *n
	now := time.Now()
	cp.IsRead = true
	cp.ReadAt = &now
	c.notifications[id] = &cp
	return nil
}

func (c *core) markAllNotificationsRead(recipientID string) int64 {
	var count int64
	now := time.Now()
	for id, n := range c.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			cp := *n
			cp.IsRead = true
			cp.ReadAt = &now
			c.notifications[id] = &cp
			count++
		}
	}
	return count
}

func (c *core) deleteNotification(id string) error {
	if _, ok := c.notifications[id]; !ok {
		return store.ErrNotFound
	}
	delete(c.notifications, id)
	return nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.Store = (*txStore)(nil)
