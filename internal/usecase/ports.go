package usecase

import (
	"context"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"
	"github.com/attractive-boy/schoolbus-back/internal/domain/rider"
	"github.com/attractive-boy/schoolbus-back/internal/domain/route"
	"github.com/attractive-boy/schoolbus-back/internal/domain/verification"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"
)

// The interfaces below are satisfied by the postgres repositories, the redis
// cache and the wechatpay client. Usecases depend on them so tests can run
// against in-memory fakes.

type OrderStore interface {
	Create(ctx context.Context, o *order.Order) error
	GetByID(ctx context.Context, id string) (*order.Order, error)
	GetByIDForUpdate(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) error
	MarkRefunded(ctx context.Context, id string, amount int64, usedDays, remainingDays int) error
	ListPaidByRiderOn(ctx context.Context, riderID string, date string) ([]*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]*order.Order, int, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error)
	GetByPaymentNoForUpdate(ctx context.Context, paymentNo string) (*payment.Payment, error)
	MarkSucceeded(ctx context.Context, id string, transactionID string) error
	UpdateStatus(ctx context.Context, id string, status payment.Status) error
}

type RefundStore interface {
	Create(ctx context.Context, rf *refund.Refund) error
	GetByOrderID(ctx context.Context, orderID string) (*refund.Refund, error)
	MarkSucceeded(ctx context.Context, id string) error
}

type VerificationStore interface {
	Create(ctx context.Context, e *verification.Event) error
	CountBetween(ctx context.Context, riderID string, from, to time.Time) (int, error)
}

type RouteStore interface {
	GetByID(ctx context.Context, id string) (*route.Route, error)
}

type RiderStore interface {
	GetByID(ctx context.Context, id string) (*rider.Rider, error)
	GetByQRCodeForUpdate(ctx context.Context, code string) (*rider.Rider, error)
}

type OutboxStore interface {
	Create(ctx context.Context, e *outbox.Event) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

type PaymentGateway interface {
	Prepay(ctx context.Context, r wechatpay.PrepayRequest) (*payment.Intent, error)
	Refund(ctx context.Context, r wechatpay.RefundRequest) (*wechatpay.RefundResult, error)
	ParseNotification(ctx context.Context, h wechatpay.NotifyHeaders, body []byte) (*wechatpay.Transaction, error)
}
