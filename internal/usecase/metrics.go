package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbus_orders_created_total",
		Help: "The total number of orders created",
	})
	paymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbus_payments_confirmed_total",
		Help: "The total number of payments confirmed by gateway callbacks",
	})
	callbacksIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbus_payment_callbacks_ignored_total",
		Help: "Gateway callbacks acknowledged without changing state, by reason",
	}, []string{"reason"})
	refundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbus_refunds_completed_total",
		Help: "The total number of refunds accepted by the gateway",
	})
	refundAmountFen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolbus_refund_amount_fen_total",
		Help: "Sum of refunded amounts in fen",
	})
	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbus_ticket_verifications_total",
		Help: "Ticket verification attempts by outcome",
	}, []string{"outcome"})
	gatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbus_gateway_errors_total",
		Help: "Payment gateway call failures by operation",
	}, []string{"op"})
)
