package usecase

import (
	"context"
	"log/slog"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/domain/rider"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"
)

// IssuePayment asks the gateway for client payment parameters of a pending
// order. Re-issuing reuses the order's payment number.
type IssuePayment struct {
	orderRepo   OrderStore
	paymentRepo PaymentStore
	riderRepo   RiderStore
	gateway     PaymentGateway
}

func NewIssuePayment(orderRepo OrderStore, paymentRepo PaymentStore, riderRepo RiderStore, gateway PaymentGateway) *IssuePayment {
	return &IssuePayment{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		riderRepo:   riderRepo,
		gateway:     gateway,
	}
}

type IssuePaymentResult struct {
	OrderID   string          `json:"orderId"`
	PaymentNo string          `json:"paymentNo"`
	Payment   *payment.Intent `json:"payment"`
}

func (uc *IssuePayment) Execute(ctx context.Context, id auth.Identity, orderID string) (*IssuePaymentResult, error) {
	o, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !id.CanAccess(o.RiderID) {
		return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
	}
	if o.Status != order.StatusPendingPayment {
		return nil, apperr.Newf(apperr.KindFailedPrecondition, "order %s is %s, not awaiting payment", o.OrderNo, o.Status)
	}

	p, err := uc.paymentRepo.GetByOrderID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "payment of order %s not found", o.OrderNo)
	}

	r, err := uc.riderRepo.GetByID(ctx, o.RiderID)
	if err != nil {
		return nil, err
	}

	intent, err := uc.prepay(ctx, o, p, r)
	if err != nil {
		return nil, err
	}

	return &IssuePaymentResult{OrderID: o.ID, PaymentNo: p.PaymentNo, Payment: intent}, nil
}

func (uc *IssuePayment) prepay(ctx context.Context, o *order.Order, p *payment.Payment, r *rider.Rider) (*payment.Intent, error) {
	if r.OpenID == "" {
		return nil, apperr.Newf(apperr.KindFailedPrecondition, "rider %s has no payment identity", r.ID)
	}

	desc := o.RouteName
	if desc == "" {
		desc = o.OrderNo
	}

	intent, err := uc.gateway.Prepay(ctx, wechatpay.PrepayRequest{
		Description: desc,
		OutTradeNo:  p.PaymentNo,
		Total:       p.Amount,
		OpenID:      r.OpenID,
	})
	if err != nil {
		gatewayErrors.WithLabelValues("prepay").Inc()
		slog.ErrorContext(ctx, "prepay failed", "order_id", o.ID, "payment_no", p.PaymentNo, "error", err)
		return nil, err
	}
	return intent, nil
}
