package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/common/serial"
	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

type RequestRefund struct {
	txManager  postgres.Transactor
	orderRepo  OrderStore
	refundRepo RefundStore
	outboxRepo OutboxStore
	cache      Cache
	calendar   clock.Calendar
}

func NewRequestRefund(
	txManager postgres.Transactor,
	orderRepo OrderStore,
	refundRepo RefundStore,
	outboxRepo OutboxStore,
	cache Cache,
	calendar clock.Calendar,
) *RequestRefund {
	return &RequestRefund{
		txManager:  txManager,
		orderRepo:  orderRepo,
		refundRepo: refundRepo,
		outboxRepo: outboxRepo,
		cache:      cache,
		calendar:   calendar,
	}
}

// Execute records a rider's refund request for the unused days of a paid
// order. Administrators are told through a RefundRequested event.
func (uc *RequestRefund) Execute(ctx context.Context, id auth.Identity, orderID string) (*refund.Refund, error) {
	var created *refund.Refund

	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		o, err := uc.orderRepo.GetByIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !id.CanAccess(o.RiderID) {
			return apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
		}

		if err := o.TransitionTo(order.StatusRefundRequested); err != nil {
			return err
		}

		pr, err := refund.Prorate(o.SelectedDates, o.TotalAmount, uc.calendar.CurrentDate())
		if err != nil {
			return err
		}
		if pr.RemainingDays == 0 {
			return apperr.Newf(apperr.KindFailedPrecondition, "nothing to refund: every ride date of order %s has passed", o.OrderNo)
		}

		now := uc.calendar.Now()
		created = &refund.Refund{
			ID:            uuid.New().String(),
			OrderID:       o.ID,
			RefundNo:      serial.New(serial.RefundPrefix, now),
			Amount:        pr.Amount,
			UsedDays:      pr.UsedDays,
			RemainingDays: pr.RemainingDays,
			Status:        refund.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := uc.orderRepo.UpdateStatus(txCtx, o.ID, o.Status); err != nil {
			return err
		}
		if err := uc.refundRepo.Create(txCtx, created); err != nil {
			return err
		}

		e, err := outbox.New(event.TypeRefundRequested, o.ID, event.ProducerOrders, event.RefundRequested{
			OrderID:     o.ID,
			OrderNo:     o.OrderNo,
			RouteName:   o.RouteName,
			RiderName:   o.RiderName,
			Amount:      pr.Amount,
			RequestedAt: now,
		}, now)
		if err != nil {
			return err
		}
		return uc.outboxRepo.Create(txCtx, e)
	})
	if err != nil {
		return nil, fmt.Errorf("transaction failed: %w", err)
	}

	invalidate(ctx, uc.cache, orderID)
	slog.InfoContext(ctx, "refund requested",
		"order_id", orderID, "refund_no", created.RefundNo, "amount", created.Amount,
		"used_days", created.UsedDays, "remaining_days", created.RemainingDays)
	return created, nil
}
