package event

import "time"

const (
	TypeOrderCreated                  = "OrderCreated"
	TypeOrderPaid                     = "OrderPaid"
	TypeOrderCancelled                = "OrderCancelled"
	TypeRefundRequested               = "RefundRequested"
	TypeOrderRefunded                 = "OrderRefunded"
	TypeTicketVerified                = "TicketVerified"
	TypePaymentReconciliationRequired = "PaymentReconciliationRequired"
)

// Producers recorded on outbox rows.
const (
	ProducerOrders   = "order-service"
	ProducerPayments = "payment-service"
	ProducerTickets  = "ticket-service"
)

type OrderCreated struct {
	OrderID     string   `json:"order_id"`
	OrderNo     string   `json:"order_no"`
	RiderID     string   `json:"rider_id"`
	RouteID     string   `json:"route_id"`
	Dates       []string `json:"dates"`
	TotalAmount int64    `json:"total_amount"`
}

type OrderPaid struct {
	OrderID       string `json:"order_id"`
	OrderNo       string `json:"order_no"`
	PaymentNo     string `json:"payment_no"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

type OrderCancelled struct {
	OrderID string `json:"order_id"`
	By      string `json:"by"`
}

// PaymentReconciliationRequired reports money received for an order that was
// no longer awaiting payment. The refund API does not accept such orders, so
// an operator settles it with the gateway by hand.
type PaymentReconciliationRequired struct {
	OrderID       string `json:"order_id"`
	OrderNo       string `json:"order_no"`
	OrderStatus   string `json:"order_status"`
	PaymentNo     string `json:"payment_no"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

// RefundRequested is delivered to every administrator.
type RefundRequested struct {
	OrderID     string    `json:"order_id"`
	OrderNo     string    `json:"order_no"`
	RouteName   string    `json:"route_name"`
	RiderName   string    `json:"rider_name"`
	Amount      int64     `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

type OrderRefunded struct {
	OrderID       string `json:"order_id"`
	OrderNo       string `json:"order_no"`
	RiderID       string `json:"rider_id"`
	RefundNo      string `json:"refund_no"`
	Amount        int64  `json:"amount"`
	UsedDays      int    `json:"used_days"`
	RemainingDays int    `json:"remaining_days"`
}

// TicketVerified is delivered to the rider who boarded.
type TicketVerified struct {
	RiderID    string    `json:"rider_id"`
	RouteName  string    `json:"route_name"`
	VerifiedAt time.Time `json:"verified_at"`
}
