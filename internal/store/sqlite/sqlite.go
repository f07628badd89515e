// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	platformcfg "github.com/prepshare/prepshare-go/internal/platform/cfg"
	"github.com/prepshare/prepshare-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Options holds sqlite-specific settings from the driver options map.
type Options struct {
	// Filename is the database file name inside DataDir.
	Filename string `mapstructure:"filename"`

	// BusyTimeoutMS is the SQLite busy_timeout pragma in milliseconds.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"`
}

// ApplyDefaults fills unset options.
func (o *Options) ApplyDefaults() {
	if o.Filename == "" {
		o.Filename = "prepshare.db"
	}
	if o.BusyTimeoutMS <= 0 {
		o.BusyTimeoutMS = 5000
	}
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	opts    Options
	db      *gorm.DB
	inTx    bool
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	var opts Options
	if err := platformcfg.Decode(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("invalid sqlite driver options: %w", err)
	}
	return &Driver{dataDir: cfg.DataDir, opts: opts}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, d.opts.Filename)
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, d.opts.BusyTimeoutMS)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(
		&store.Resource{},
		&store.SharedOffer{},
		&store.ResourceRequest{},
		&store.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil || d.inTx {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tx runs fn inside a database transaction. Nested calls join the outer
// transaction.
func (d *Driver) Tx(ctx context.Context, fn func(store.Store) error) error {
	if d.inTx {
		return fn(d)
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Driver{dataDir: d.dataDir, opts: d.opts, db: tx, inTx: true})
	})
}

// ResourceStore implementation

func (d *Driver) CreateResource(ctx context.Context, r *store.Resource) error {
	return d.db.WithContext(ctx).Create(r).Error
}

func (d *Driver) GetResource(ctx context.Context, id string) (*store.Resource, error) {
	var r store.Resource
	if err := d.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (d *Driver) UpdateResource(ctx context.Context, r *store.Resource) error {
	result := d.db.WithContext(ctx).Model(&store.Resource{}).Where("id = ?", r.ID).
		Select("*").Omit("id", "created_at").Updates(r)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) DeleteResource(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Resource{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) ListResourcesByOwner(ctx context.Context, ownerID string) ([]*store.Resource, error) {
	var resources []*store.Resource
	err := d.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&resources).Error
	if err != nil {
		return nil, err
	}
	return resources, nil
}

// OfferStore implementation

func (d *Driver) CreateOffer(ctx context.Context, o *store.SharedOffer) error {
	return d.db.WithContext(ctx).Create(o).Error
}

func (d *Driver) GetOffer(ctx context.Context, id string) (*store.SharedOffer, error) {
	var o store.SharedOffer
	if err := d.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

func (d *Driver) UpdateOffer(ctx context.Context, o *store.SharedOffer) error {
	o.Version++
	o.UpdatedAt = time.Now()
	result := d.db.WithContext(ctx).Model(&store.SharedOffer{}).Where("id = ?", o.ID).
		Select("*").Omit("id", "created_at").Updates(o)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) DeleteOffer(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.SharedOffer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) UpdateOfferStatusFrom(ctx context.Context, id string, from, to store.OfferStatus) error {
	result := d.db.WithContext(ctx).Model(&store.SharedOffer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := d.GetOffer(ctx, id); err != nil {
			return err
		}
		return store.ErrStale
	}
	return nil
}

func (d *Driver) ListOffersByCommunity(ctx context.Context, communityID string) ([]*store.SharedOffer, error) {
	return d.listOffers(ctx, "community_id = ?", communityID)
}

func (d *Driver) ListOffersByOwner(ctx context.Context, ownerID string) ([]*store.SharedOffer, error) {
	return d.listOffers(ctx, "owner_id = ?", ownerID)
}

func (d *Driver) ListOffersByResource(ctx context.Context, resourceID string) ([]*store.SharedOffer, error) {
	return d.listOffers(ctx, "resource_id = ?", resourceID)
}

func (d *Driver) listOffers(ctx context.Context, query string, arg any) ([]*store.SharedOffer, error) {
	var offers []*store.SharedOffer
	err := d.db.WithContext(ctx).Where(query, arg).Order("id").Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}

// RequestStore implementation

func (d *Driver) CreateRequest(ctx context.Context, r *store.ResourceRequest) error {
	return d.db.WithContext(ctx).Create(r).Error
}

func (d *Driver) GetRequest(ctx context.Context, id string) (*store.ResourceRequest, error) {
	var r store.ResourceRequest
	if err := d.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (d *Driver) UpdateRequest(ctx context.Context, r *store.ResourceRequest) error {
	result := d.db.WithContext(ctx).Model(&store.ResourceRequest{}).Where("id = ?", r.ID).
		Select("*").Omit("id", "created_at").Updates(r)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) UpdateRequestStatusFrom(ctx context.Context, id string, from, to store.RequestStatus) error {
	result := d.db.WithContext(ctx).Model(&store.ResourceRequest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := d.GetRequest(ctx, id); err != nil {
			return err
		}
		return store.ErrStale
	}
	return nil
}

func (d *Driver) ListRequestsByOffer(ctx context.Context, offerID string) ([]*store.ResourceRequest, error) {
	return d.listRequests(ctx, d.db.WithContext(ctx).Where("offer_id = ?", offerID))
}

func (d *Driver) ListRequestsByRequester(ctx context.Context, requesterID string) ([]*store.ResourceRequest, error) {
	return d.listRequests(ctx, d.db.WithContext(ctx).Where("requester_id = ?", requesterID))
}

func (d *Driver) ListRequestsForOwner(ctx context.Context, ownerID string) ([]*store.ResourceRequest, error) {
	sub := d.db.Model(&store.SharedOffer{}).Select("id").Where("owner_id = ?", ownerID)
	return d.listRequests(ctx, d.db.WithContext(ctx).Where("offer_id IN (?)", sub))
}

func (d *Driver) listRequests(ctx context.Context, query *gorm.DB) ([]*store.ResourceRequest, error) {
	var requests []*store.ResourceRequest
	if err := query.Order("id").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// NotificationStore implementation

func (d *Driver) CreateNotification(ctx context.Context, n *store.Notification) error {
	return d.db.WithContext(ctx).Create(n).Error
}

func (d *Driver) GetNotification(ctx context.Context, id string) (*store.Notification, error) {
	var n store.Notification
	if err := d.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &n, nil
}

func (d *Driver) ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]*store.Notification, error) {
	var notifications []*store.Notification
	err := d.db.WithContext(ctx).Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Driver) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&store.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).Count(&count).Error
	return count, err
}

func (d *Driver) MarkNotificationRead(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Model(&store.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Already read is fine; missing is not.
		_, err := d.GetNotification(ctx, id)
		return err
	}
	return nil
}

func (d *Driver) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	result := d.db.WithContext(ctx).Model(&store.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now()})
	return result.RowsAffected, result.Error
}

func (d *Driver) DeleteNotification(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Notification{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.Store = (*Driver)(nil)
