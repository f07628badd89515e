package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prepshare/prepshare-go/internal/cache"
	"github.com/prepshare/prepshare-go/internal/platform/logutil"
	"github.com/prepshare/prepshare-go/internal/store"
)

// ChecklistCategories is the recommended household preparedness checklist.
var ChecklistCategories = []string{
	store.CategoryFood,
	store.CategoryWater,
	store.CategoryMedicine,
	store.CategoryEnergy,
	store.CategoryTools,
}

// CategoryFulfillment describes one checklist category.
type CategoryFulfillment struct {
	Category      string  `json:"category"`
	Items         int     `json:"items"`
	TotalQuantity float64 `json:"total_quantity"`
	Covered       bool    `json:"covered"`
}

// FulfillmentStatus is the derived stockpile readiness view.
type FulfillmentStatus struct {
	Categories []CategoryFulfillment `json:"categories"`
	Percent    float64               `json:"percent"`
}

// SharedSummary counts a user's offers by status.
type SharedSummary struct {
	Available int `json:"available"`
	Requested int `json:"requested"`
	Taken     int `json:"taken"`
	Total     int `json:"total"`
}

// StatusProjector computes derived read-only views. Results are cached
// briefly; the cache is never a system of record, so a stale read heals on
// the next expiry.
type StatusProjector struct {
	store store.Store
	cache cache.Cache
	log   *slog.Logger
}

// NewStatusProjector creates a projector. cache may be nil to disable
// caching.
func NewStatusProjector(st store.Store, c cache.Cache, log *slog.Logger) *StatusProjector {
	return &StatusProjector{store: st, cache: c, log: logutil.NoopIfNil(log)}
}

// PendingRequestCount returns how many pending requests target the offer.
func (p *StatusProjector) PendingRequestCount(ctx context.Context, offerID string) (int, error) {
	var count int
	err := p.cached(ctx, "status:pending:"+offerID, &count, func() (any, error) {
		requests, err := p.store.ListRequestsByOffer(ctx, offerID)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, r := range requests {
			if r.Status == store.RequestPending {
				n++
			}
		}
		return n, nil
	})
	return count, err
}

// Fulfillment reports checklist coverage for the user's stockpile. A
// category is covered when at least one resource in it has stock.
func (p *StatusProjector) Fulfillment(ctx context.Context, userID string) (*FulfillmentStatus, error) {
	var status FulfillmentStatus
	err := p.cached(ctx, "status:fulfillment:"+userID, &status, func() (any, error) {
		resources, err := p.store.ListResourcesByOwner(ctx, userID)
		if err != nil {
			return nil, err
		}

		byCategory := make(map[string]*CategoryFulfillment, len(ChecklistCategories))
		out := FulfillmentStatus{Categories: make([]CategoryFulfillment, 0, len(ChecklistCategories))}
		for _, cat := range ChecklistCategories {
			byCategory[cat] = &CategoryFulfillment{Category: cat}
		}
		for _, r := range resources {
			cf, ok := byCategory[r.Category]
			if !ok {
				continue // off-checklist categories don't count
			}
			cf.Items++
			cf.TotalQuantity += r.Quantity
			if r.Quantity > 0 {
				cf.Covered = true
			}
		}

		covered := 0
		for _, cat := range ChecklistCategories {
			cf := byCategory[cat]
			out.Categories = append(out.Categories, *cf)
			if cf.Covered {
				covered++
			}
		}
		out.Percent = float64(covered) / float64(len(ChecklistCategories)) * 100
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Shared summarizes the user's offers by status.
func (p *StatusProjector) Shared(ctx context.Context, userID string) (*SharedSummary, error) {
	var summary SharedSummary
	err := p.cached(ctx, "status:shared:"+userID, &summary, func() (any, error) {
		offers, err := p.store.ListOffersByOwner(ctx, userID)
		if err != nil {
			return nil, err
		}
		out := SharedSummary{Total: len(offers)}
		for _, o := range offers {
			switch o.Status {
			case store.OfferAvailable:
				out.Available++
			case store.OfferRequested:
				out.Requested++
			case store.OfferTaken:
				out.Taken++
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// cached runs compute behind a short-TTL cache keyed by key, decoding the
// cached JSON into dst on a hit.
func (p *StatusProjector) cached(ctx context.Context, key string, dst any, compute func() (any, error)) error {
	if p.cache != nil {
		if raw, err := p.cache.Get(ctx, key); err == nil {
			if err := json.Unmarshal(raw, dst); err == nil {
				return nil
			}
			// Corrupt entry; fall through to recompute.
			p.log.Debug("dropping unreadable cache entry", "key", key)
		}
	}

	value, err := compute()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, key, raw, cache.TTLProjection); err != nil {
			p.log.Debug("cache set failed", "key", key, "error", err)
		}
	}
	return json.Unmarshal(raw, dst)
}
