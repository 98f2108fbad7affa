package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
)

type CancelOrder struct {
	txManager  postgres.Transactor
	orderRepo  OrderStore
	outboxRepo OutboxStore
	cache      Cache
	calendar   clock.Calendar
}

func NewCancelOrder(
	txManager postgres.Transactor,
	orderRepo OrderStore,
	outboxRepo OutboxStore,
	cache Cache,
	calendar clock.Calendar,
) *CancelOrder {
	return &CancelOrder{
		txManager:  txManager,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		cache:      cache,
		calendar:   calendar,
	}
}

func (uc *CancelOrder) Execute(ctx context.Context, id auth.Identity, orderID string) error {
	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		o, err := uc.orderRepo.GetByIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !id.CanAccess(o.RiderID) {
			return apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
		}

		if err := o.TransitionTo(order.StatusCancelled); err != nil {
			return err
		}
		if err := uc.orderRepo.UpdateStatus(txCtx, o.ID, o.Status); err != nil {
			return err
		}

		e, err := outbox.New(event.TypeOrderCancelled, o.ID, event.ProducerOrders,
			event.OrderCancelled{OrderID: o.ID, By: id.UserID}, uc.calendar.Now())
		if err != nil {
			return err
		}
		return uc.outboxRepo.Create(txCtx, e)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	invalidate(ctx, uc.cache, orderID)
	slog.InfoContext(ctx, "order cancelled", "order_id", orderID, "by", id.UserID)
	return nil
}
