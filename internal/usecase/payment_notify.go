package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"
)

// Outcome says what a payment notification did. Every outcome is acknowledged
// to the gateway; only errors are answered with FAIL.
type Outcome string

const (
	OutcomeCredited        Outcome = "credited"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeUnknownPayment  Outcome = "unknown_payment"
	OutcomeNotSuccess      Outcome = "not_success"
	OutcomeAmountMismatch  Outcome = "amount_mismatch"
	OutcomeOrderNotPending Outcome = "order_not_pending"
)

type HandlePaymentNotification struct {
	txManager   postgres.Transactor
	paymentRepo PaymentStore
	orderRepo   OrderStore
	outboxRepo  OutboxStore
	gateway     PaymentGateway
	cache       Cache
	calendar    clock.Calendar
}

func NewHandlePaymentNotification(
	txManager postgres.Transactor,
	paymentRepo PaymentStore,
	orderRepo OrderStore,
	outboxRepo OutboxStore,
	gateway PaymentGateway,
	cache Cache,
	calendar clock.Calendar,
) *HandlePaymentNotification {
	return &HandlePaymentNotification{
		txManager:   txManager,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		gateway:     gateway,
		cache:       cache,
		calendar:    calendar,
	}
}

// Execute verifies and applies one gateway notification. Replays of the same
// notification are acknowledged without further changes.
func (uc *HandlePaymentNotification) Execute(ctx context.Context, h wechatpay.NotifyHeaders, body []byte) (Outcome, error) {
	tx, err := uc.gateway.ParseNotification(ctx, h, body)
	if err != nil {
		slog.WarnContext(ctx, "payment notification rejected", "error", err)
		return "", err
	}

	log := slog.With("payment_no", tx.OutTradeNo, "transaction_id", tx.TransactionID)

	if tx.TradeState != wechatpay.TradeStateSuccess {
		callbacksIgnored.WithLabelValues(string(OutcomeNotSuccess)).Inc()
		log.InfoContext(ctx, "payment notification without success state", "trade_state", tx.TradeState)
		return OutcomeNotSuccess, nil
	}

	var (
		outcome Outcome
		orderID string
	)
	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		p, err := uc.paymentRepo.GetByPaymentNoForUpdate(txCtx, tx.OutTradeNo)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				outcome = OutcomeUnknownPayment
				return nil
			}
			return err
		}
		orderID = p.OrderID

		if p.Status != payment.StatusPending {
			outcome = OutcomeDuplicate
			return nil
		}

		if tx.Amount.Total != p.Amount {
			outcome = OutcomeAmountMismatch
			log.ErrorContext(ctx, "payment amount mismatch, not crediting",
				"order_id", p.OrderID, "expected", p.Amount, "received", tx.Amount.Total)
			return nil
		}

		if err := uc.paymentRepo.MarkSucceeded(txCtx, p.ID, tx.TransactionID); err != nil {
			return err
		}

		o, err := uc.orderRepo.GetByIDForUpdate(txCtx, p.OrderID)
		if err != nil {
			return err
		}

		if o.Status != order.StatusPendingPayment {
			// Money arrived for an order that was cancelled meanwhile. Cancelled
			// orders cannot be refunded through the API, so the payment is kept
			// and operators are asked to return it at the gateway.
			outcome = OutcomeOrderNotPending
			log.WarnContext(ctx, "payment received for order that is no longer pending",
				"order_id", o.ID, "order_status", o.Status)

			e, err := outbox.New(event.TypePaymentReconciliationRequired, o.ID, event.ProducerPayments, event.PaymentReconciliationRequired{
				OrderID:       o.ID,
				OrderNo:       o.OrderNo,
				OrderStatus:   string(o.Status),
				PaymentNo:     p.PaymentNo,
				TransactionID: tx.TransactionID,
				Amount:        tx.Amount.Total,
			}, uc.calendar.Now())
			if err != nil {
				return err
			}
			return uc.outboxRepo.Create(txCtx, e)
		}

		if err := o.TransitionTo(order.StatusPaid); err != nil {
			return err
		}
		if err := uc.orderRepo.UpdateStatus(txCtx, o.ID, o.Status); err != nil {
			return err
		}

		e, err := outbox.New(event.TypeOrderPaid, o.ID, event.ProducerPayments, event.OrderPaid{
			OrderID:       o.ID,
			OrderNo:       o.OrderNo,
			PaymentNo:     p.PaymentNo,
			TransactionID: tx.TransactionID,
			Amount:        p.Amount,
		}, uc.calendar.Now())
		if err != nil {
			return err
		}
		if err := uc.outboxRepo.Create(txCtx, e); err != nil {
			return err
		}

		outcome = OutcomeCredited
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "payment notification transaction failed", "error", err)
		return "", fmt.Errorf("transaction failed: %w", err)
	}

	if outcome == OutcomeCredited {
		paymentsConfirmed.Inc()
		log.InfoContext(ctx, "payment confirmed", "order_id", orderID)
	} else {
		callbacksIgnored.WithLabelValues(string(outcome)).Inc()
	}
	if orderID != "" {
		invalidate(ctx, uc.cache, orderID)
	}
	return outcome, nil
}
