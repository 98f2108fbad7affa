package api

import (
	"net/http"

	"github.com/attractive-boy/schoolbus-back/internal/api/middleware"
	"github.com/attractive-boy/schoolbus-back/internal/auth"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// NewRouter wires every route. redisClient may be nil, which disables
// idempotency keys.
func NewRouter(h *Handlers, verifier *auth.Verifier, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.RequestID)
	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Signed by the gateway, not by a user token.
	r.Post("/payment/notify", h.PaymentNotify)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier))

		createOrder := http.Handler(http.HandlerFunc(h.CreateOrder))
		if redisClient != nil {
			createOrder = middleware.Idempotency(redisClient)(createOrder)
		}
		r.Method(http.MethodPost, "/orders", createOrder)

		r.Get("/orders", h.ListOrders)
		r.With(middleware.RequireAdmin).Get("/orders/export", h.ExportOrders)
		r.Post("/orders/cancel", h.CancelOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.With(middleware.RequireAdmin).Get("/orders/{id}/workflow", h.GetWorkflow)
		r.Post("/orders/{id}/payment", h.IssuePayment)
		r.Post("/orders/{id}/refund-request", h.RequestRefund)

		r.Put("/payment/refund/{orderId}", h.ApproveRefund)
		r.With(middleware.RequireVerifier).Post("/ticket/verify", h.VerifyTicket)
	})

	return r
}
