package usecase

import (
	"context"
	"fmt"

	"github.com/attractive-boy/schoolbus-back/internal/domain/inbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"
	"github.com/attractive-boy/schoolbus-back/internal/domain/payment"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"
)

// WorkflowDTO is everything the ledger knows about one order, including the
// events it produced and which consumers have seen them.
type WorkflowDTO struct {
	Order   *order.Order     `json:"order"`
	Payment *payment.Payment `json:"payment,omitempty"`
	Refund  *refund.Refund   `json:"refund,omitempty"`
	Outbox  []*outbox.Event  `json:"outbox"`
	Inbox   []*inbox.Record  `json:"inbox"`
}

type OutboxReader interface {
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error)
}

type InboxReader interface {
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*inbox.Record, error)
}

type GetWorkflow struct {
	orderRepo   OrderStore
	paymentRepo PaymentStore
	refundRepo  RefundStore
	outboxRepo  OutboxReader
	inboxRepo   InboxReader
}

func NewGetWorkflow(
	orderRepo OrderStore,
	paymentRepo PaymentStore,
	refundRepo RefundStore,
	outboxRepo OutboxReader,
	inboxRepo InboxReader,
) *GetWorkflow {
	return &GetWorkflow{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		outboxRepo:  outboxRepo,
		inboxRepo:   inboxRepo,
	}
}

func (uc *GetWorkflow) Execute(ctx context.Context, orderID string) (*WorkflowDTO, error) {
	o, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	p, err := uc.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}

	rf, err := uc.refundRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}

	outboxEvents, err := uc.outboxRepo.ListByCorrelationID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get outbox events: %w", err)
	}

	inboxEvents, err := uc.inboxRepo.ListByCorrelationID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get inbox events: %w", err)
	}

	return &WorkflowDTO{
		Order:   o,
		Payment: p,
		Refund:  rf,
		Outbox:  outboxEvents,
		Inbox:   inboxEvents,
	}, nil
}
