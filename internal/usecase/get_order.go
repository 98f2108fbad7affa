package usecase

import (
	"context"
	"log/slog"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
)

type GetOrder struct {
	cache     Cache
	orderRepo OrderStore
}

// NewGetOrder builds the cached order read. cache may be nil.
func NewGetOrder(cache Cache, orderRepo OrderStore) *GetOrder {
	return &GetOrder{
		cache:     cache,
		orderRepo: orderRepo,
	}
}

func (uc *GetOrder) Execute(ctx context.Context, id auth.Identity, orderID string) (*order.Order, error) {
	o, err := uc.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Riders never learn whether someone else's order exists.
	if !id.CanAccess(o.RiderID) {
		return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
	}
	return o, nil
}

func (uc *GetOrder) load(ctx context.Context, orderID string) (*order.Order, error) {
	if uc.cache != nil {
		var cached order.Order
		hit, err := uc.cache.Get(ctx, orderID, &cached)
		if err != nil {
			slog.WarnContext(ctx, "order cache read failed", "order_id", orderID, "error", err)
		}
		if hit {
			return &cached, nil
		}
	}

	o, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// A writer may commit and invalidate between the read above and this Set,
	// leaving the old order cached until the TTL expires. Transitions always
	// re-read under FOR UPDATE, so only this view can be stale.
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, orderID, o); err != nil {
			slog.WarnContext(ctx, "order cache write failed", "order_id", orderID, "error", err)
		}
	}
	return o, nil
}

// invalidate drops a cached order after a committed state change.
func invalidate(ctx context.Context, cache Cache, orderID string) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, orderID); err != nil {
		slog.WarnContext(ctx, "order cache invalidation failed", "order_id", orderID, "error", err)
	}
}
