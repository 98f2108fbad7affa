package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/common/serial"
	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/postgres"

	"github.com/google/uuid"
)

type CreateOrder struct {
	txManager   postgres.Transactor
	orderRepo   OrderStore
	paymentRepo PaymentStore
	routeRepo   RouteStore
	riderRepo   RiderStore
	outboxRepo  OutboxStore
	issuer      *IssuePayment
	calendar    clock.Calendar
}

func NewCreateOrder(
	txManager postgres.Transactor,
	orderRepo OrderStore,
	paymentRepo PaymentStore,
	routeRepo RouteStore,
	riderRepo RiderStore,
	outboxRepo OutboxStore,
	issuer *IssuePayment,
	calendar clock.Calendar,
) *CreateOrder {
	return &CreateOrder{
		txManager:   txManager,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		routeRepo:   routeRepo,
		riderRepo:   riderRepo,
		outboxRepo:  outboxRepo,
		issuer:      issuer,
		calendar:    calendar,
	}
}

type CreateOrderParams struct {
	RiderID     string         `json:"-"`
	RouteID     string         `json:"routeId"`
	Dates       []string       `json:"dates"`
	TotalAmount int64          `json:"totalAmount"`
	TripType    order.TripType `json:"tripType"`
}

type CreateOrderResult struct {
	OrderID   string          `json:"orderId"`
	OrderNo   string          `json:"orderNo"`
	PaymentNo string          `json:"paymentNo"`
	Payment   *payment.Intent `json:"payment"`
	// PaymentError is set when the order was committed but the prepay call
	// failed. The client pays later through POST /orders/{id}/payment.
	PaymentError *PaymentIssueError `json:"paymentError,omitempty"`
}

type PaymentIssueError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (uc *CreateOrder) Execute(ctx context.Context, params CreateOrderParams) (*CreateOrderResult, error) {
	if !params.TripType.Valid() {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "invalid trip type %q", params.TripType)
	}

	dates, err := order.NormalizeDates(params.Dates)
	if err != nil {
		return nil, err
	}

	r, err := uc.riderRepo.GetByID(ctx, params.RiderID)
	if err != nil {
		return nil, err
	}

	rt, err := uc.routeRepo.GetByID(ctx, params.RouteID)
	if err != nil {
		return nil, err
	}
	if !rt.Active() {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "route %s is not active", rt.Name)
	}
	for _, d := range dates {
		if !rt.Serves(d) {
			return nil, apperr.Newf(apperr.KindInvalidArgument, "route %s does not run on %s", rt.Name, d)
		}
	}

	expected := int64(len(dates)) * rt.DailyPrice
	if params.TotalAmount != expected {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "total amount %d does not match %d days at %d", params.TotalAmount, len(dates), rt.DailyPrice)
	}

	now := uc.calendar.Now()
	newOrder := &order.Order{
		ID:            uuid.New().String(),
		OrderNo:       serial.New(serial.OrderPrefix, now),
		RiderID:       r.ID,
		RiderName:     r.Nickname,
		RouteID:       rt.ID,
		RouteName:     rt.Name,
		SelectedDates: dates,
		TripType:      params.TripType,
		TotalAmount:   expected,
		Status:        order.StatusPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	newPayment := &payment.Payment{
		ID:        uuid.New().String(),
		OrderID:   newOrder.ID,
		PaymentNo: serial.New(serial.PaymentPrefix, now),
		Amount:    newOrder.TotalAmount,
		Status:    payment.StatusPending,
		Method:    payment.MethodWxPay,
		CreatedAt: now,
		UpdatedAt: now,
	}

	outboxEvent, err := outbox.New(event.TypeOrderCreated, newOrder.ID, event.ProducerOrders, event.OrderCreated{
		OrderID:     newOrder.ID,
		OrderNo:     newOrder.OrderNo,
		RiderID:     newOrder.RiderID,
		RouteID:     newOrder.RouteID,
		Dates:       newOrder.SelectedDates,
		TotalAmount: newOrder.TotalAmount,
	}, now)
	if err != nil {
		return nil, err
	}

	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.orderRepo.Create(txCtx, newOrder); err != nil {
			return err
		}

		if err := uc.paymentRepo.Create(txCtx, newPayment); err != nil {
			return err
		}

		return uc.outboxRepo.Create(txCtx, outboxEvent)
	})
	if err != nil {
		return nil, fmt.Errorf("transaction failed: %w", err)
	}

	ordersCreated.Inc()
	slog.InfoContext(ctx, "order created",
		"order_id", newOrder.ID, "order_no", newOrder.OrderNo, "payment_no", newPayment.PaymentNo, "amount", newOrder.TotalAmount)

	res := &CreateOrderResult{
		OrderID:   newOrder.ID,
		OrderNo:   newOrder.OrderNo,
		PaymentNo: newPayment.PaymentNo,
	}

	// The prepay call happens after commit so no row lock is held across it.
	// The order exists from here on, so a failed prepay is reported in the
	// result rather than as an error: a retried request must not create a
	// second order.
	intent, err := uc.issuer.prepay(ctx, newOrder, newPayment, r)
	if err != nil {
		slog.WarnContext(ctx, "payment could not be issued for new order",
			"order_id", newOrder.ID, "payment_no", newPayment.PaymentNo, "error", err)
		res.PaymentError = &PaymentIssueError{
			Kind:    apperr.KindOf(err).String(),
			Message: "payment could not be issued, retry payment for this order",
		}
		return res, nil
	}

	res.Payment = intent
	return res, nil
}
