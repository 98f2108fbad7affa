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
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"

	"github.com/google/uuid"
)

type ApproveRefund struct {
	txManager   postgres.Transactor
	orderRepo   OrderStore
	paymentRepo PaymentStore
	refundRepo  RefundStore
	outboxRepo  OutboxStore
	gateway     PaymentGateway
	cache       Cache
	calendar    clock.Calendar
}

func NewApproveRefund(
	txManager postgres.Transactor,
	orderRepo OrderStore,
	paymentRepo PaymentStore,
	refundRepo RefundStore,
	outboxRepo OutboxStore,
	gateway PaymentGateway,
	cache Cache,
	calendar clock.Calendar,
) *ApproveRefund {
	return &ApproveRefund{
		txManager:   txManager,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		outboxRepo:  outboxRepo,
		gateway:     gateway,
		cache:       cache,
		calendar:    calendar,
	}
}

// ApproveRefundParams carries the figures the administrator saw. They are
// optional and only checked against the server's own computation.
type ApproveRefundParams struct {
	OrderID       string `json:"-"`
	RefundAmount  *int64 `json:"refundAmount"`
	UsedDays      *int   `json:"usedDays"`
	RemainingDays *int   `json:"remainingDays"`
}

func (uc *ApproveRefund) Execute(ctx context.Context, id auth.Identity, params ApproveRefundParams) (*refund.Refund, error) {
	if !id.IsAdmin() {
		return nil, apperr.PermissionDenied("only administrators may approve refunds")
	}

	var done *refund.Refund

	err := uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		o, err := uc.orderRepo.GetByIDForUpdate(txCtx, params.OrderID)
		if err != nil {
			return err
		}
		if !order.CanTransition(o.Status, order.StatusRefunded) {
			return apperr.Newf(apperr.KindFailedPrecondition, "order %s is %s and cannot be refunded", o.OrderNo, o.Status)
		}

		p, err := uc.paymentRepo.GetByOrderID(txCtx, o.ID)
		if err != nil {
			return err
		}
		if p == nil || p.Status != payment.StatusSucceeded {
			return apperr.Newf(apperr.KindFailedPrecondition, "order %s has no settled payment", o.OrderNo)
		}

		pending, err := uc.refundRepo.GetByOrderID(txCtx, o.ID)
		if err != nil {
			return err
		}

		rf, err := uc.serverRefund(o, pending)
		if err != nil {
			return err
		}
		if err := checkClaimed(params, rf); err != nil {
			return err
		}
		if rf.Amount <= 0 {
			return apperr.Newf(apperr.KindFailedPrecondition, "nothing to refund for order %s", o.OrderNo)
		}

		// The gateway deduplicates on the refund number, so retrying after a
		// failed commit cannot pay out twice for a requested refund.
		res, err := uc.gateway.Refund(ctx, wechatpay.RefundRequest{
			OutTradeNo:  p.PaymentNo,
			OutRefundNo: rf.RefundNo,
			Reason:      "unused ride days",
			Refund:      rf.Amount,
			Total:       p.Amount,
		})
		if err != nil {
			gatewayErrors.WithLabelValues("refund").Inc()
			return err
		}
		slog.InfoContext(ctx, "gateway accepted refund", "order_id", o.ID, "refund_no", rf.RefundNo, "refund_id", res.RefundID, "status", res.Status)

		if err := o.TransitionTo(order.StatusRefunded); err != nil {
			return err
		}
		if err := uc.orderRepo.MarkRefunded(txCtx, o.ID, rf.Amount, rf.UsedDays, rf.RemainingDays); err != nil {
			return err
		}
		if err := uc.paymentRepo.UpdateStatus(txCtx, p.ID, payment.StatusRefunded); err != nil {
			return err
		}

		rf.Status = refund.StatusSucceeded
		if pending != nil {
			err = uc.refundRepo.MarkSucceeded(txCtx, rf.ID)
		} else {
			err = uc.refundRepo.Create(txCtx, rf)
		}
		if err != nil {
			return err
		}

		e, err := outbox.New(event.TypeOrderRefunded, o.ID, event.ProducerPayments, event.OrderRefunded{
			OrderID:       o.ID,
			OrderNo:       o.OrderNo,
			RiderID:       o.RiderID,
			RefundNo:      rf.RefundNo,
			Amount:        rf.Amount,
			UsedDays:      rf.UsedDays,
			RemainingDays: rf.RemainingDays,
		}, uc.calendar.Now())
		if err != nil {
			return err
		}
		if err := uc.outboxRepo.Create(txCtx, e); err != nil {
			return err
		}

		done = rf
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "refund approval failed", "order_id", params.OrderID, "error", err)
		return nil, fmt.Errorf("transaction failed: %w", err)
	}

	refundsCompleted.Inc()
	refundAmountFen.Add(float64(done.Amount))
	invalidate(ctx, uc.cache, params.OrderID)
	return done, nil
}

// serverRefund is the authoritative refund: the pending request when one was
// made, otherwise the proration as of today.
func (uc *ApproveRefund) serverRefund(o *order.Order, pending *refund.Refund) (*refund.Refund, error) {
	if pending != nil && pending.Status == refund.StatusPending {
		return pending, nil
	}
	if pending != nil {
		return nil, apperr.Newf(apperr.KindFailedPrecondition, "order %s was already refunded", o.OrderNo)
	}

	pr, err := refund.Prorate(o.SelectedDates, o.TotalAmount, uc.calendar.CurrentDate())
	if err != nil {
		return nil, err
	}

	now := uc.calendar.Now()
	return &refund.Refund{
		ID:            uuid.New().String(),
		OrderID:       o.ID,
		RefundNo:      serial.New(serial.RefundPrefix, now),
		Amount:        pr.Amount,
		UsedDays:      pr.UsedDays,
		RemainingDays: pr.RemainingDays,
		Status:        refund.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func checkClaimed(params ApproveRefundParams, rf *refund.Refund) error {
	if params.RefundAmount != nil && *params.RefundAmount != rf.Amount {
		return apperr.Newf(apperr.KindInvalidArgument, "refund amount %d does not match computed %d", *params.RefundAmount, rf.Amount)
	}
	if params.UsedDays != nil && *params.UsedDays != rf.UsedDays {
		return apperr.Newf(apperr.KindInvalidArgument, "used days %d does not match computed %d", *params.UsedDays, rf.UsedDays)
	}
	if params.RemainingDays != nil && *params.RemainingDays != rf.RemainingDays {
		return apperr.Newf(apperr.KindInvalidArgument, "remaining days %d does not match computed %d", *params.RemainingDays, rf.RemainingDays)
	}
	return nil
}
