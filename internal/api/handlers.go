package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/api/respond"
	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/domain/refund"
	"github.com/attractive-boy/schoolbus-back/internal/infrastructure/wechatpay"
	"github.com/attractive-boy/schoolbus-back/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const maxNotifyBody = 1 << 20

type (
	OrderCreator interface {
		Execute(ctx context.Context, params usecase.CreateOrderParams) (*usecase.CreateOrderResult, error)
	}
	OrderReader interface {
		Execute(ctx context.Context, id auth.Identity, orderID string) (*order.Order, error)
	}
	OrderLister interface {
		Execute(ctx context.Context, id auth.Identity, params usecase.ListOrdersParams) (*usecase.ListOrdersResult, error)
	}
	OrderCanceller interface {
		Execute(ctx context.Context, id auth.Identity, orderID string) error
	}
	PaymentIssuer interface {
		Execute(ctx context.Context, id auth.Identity, orderID string) (*usecase.IssuePaymentResult, error)
	}
	NotificationHandler interface {
		Execute(ctx context.Context, h wechatpay.NotifyHeaders, body []byte) (usecase.Outcome, error)
	}
	RefundRequester interface {
		Execute(ctx context.Context, id auth.Identity, orderID string) (*refund.Refund, error)
	}
	RefundApprover interface {
		Execute(ctx context.Context, id auth.Identity, params usecase.ApproveRefundParams) (*refund.Refund, error)
	}
	TicketVerifier interface {
		Execute(ctx context.Context, params usecase.VerifyTicketParams) (*usecase.VerifyTicketResult, error)
	}
	OrderExporter interface {
		Execute(ctx context.Context, id auth.Identity, params usecase.ExportOrdersParams) (*usecase.ExportOrdersResult, error)
	}
	WorkflowReader interface {
		Execute(ctx context.Context, orderID string) (*usecase.WorkflowDTO, error)
	}
)

// Deps are the use cases served over HTTP.
type Deps struct {
	CreateOrder   OrderCreator
	GetOrder      OrderReader
	ListOrders    OrderLister
	CancelOrder   OrderCanceller
	IssuePayment  PaymentIssuer
	PaymentNotify NotificationHandler
	RequestRefund RefundRequester
	ApproveRefund RefundApprover
	VerifyTicket  TicketVerifier
	ExportOrders  OrderExporter
	GetWorkflow   WorkflowReader
}

type Handlers struct {
	uc  Deps
	loc *time.Location
}

// NewHandlers builds the handlers. loc interprets date-only query parameters.
func NewHandlers(deps Deps, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{uc: deps, loc: loc}
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindInvalidArgument, err, "invalid request body")
	}
	return nil
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var params usecase.CreateOrderParams
	if err := decode(r, &params); err != nil {
		respond.Error(w, r, err)
		return
	}
	params.RiderID = identity(r).UserID

	res, err := h.uc.CreateOrder.Execute(r.Context(), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, res)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	params, err := h.listParams(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	res, err := h.uc.ListOrders.Execute(r.Context(), identity(r), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	noCache(w)
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handlers) listParams(r *http.Request) (usecase.ListOrdersParams, error) {
	q := r.URL.Query()
	var (
		p   usecase.ListOrdersParams
		err error
	)

	if p.Current, err = intParam(q.Get("current")); err != nil {
		return p, err
	}
	if p.PageSize, err = intParam(q.Get("pageSize")); err != nil {
		return p, err
	}
	if v := q.Get("is_admin"); v != "" {
		if p.AllRiders, err = strconv.ParseBool(v); err != nil {
			return p, apperr.Newf(apperr.KindInvalidArgument, "is_admin %q is not a boolean", v)
		}
	}

	p.Filter = order.Filter{
		OrderNo:      strings.TrimSpace(q.Get("orderNo")),
		RouteName:    strings.TrimSpace(q.Get("routeName")),
		RiderName:    strings.TrimSpace(q.Get("riderName")),
		Status:       order.Status(q.Get("status")),
		TripType:     order.TripType(q.Get("tripType")),
		BillingMonth: q.Get("billingMonth"),
	}
	if p.Filter.CreatedFrom, err = h.timeParam(q.Get("startTime"), false); err != nil {
		return p, err
	}
	if p.Filter.CreatedTo, err = h.timeParam(q.Get("endTime"), true); err != nil {
		return p, err
	}
	return p, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Newf(apperr.KindInvalidArgument, "%q is not a number", v)
	}
	return n, nil
}

// timeParam accepts RFC 3339 or a bare date. A bare end date covers the
// whole day.
func (h *Handlers) timeParam(v string, end bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(clock.DateLayout, v, h.loc)
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "%q is neither a date nor an RFC 3339 time", v)
	}
	if end {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.GetOrder.Execute(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	noCache(w)
	respond.JSON(w, http.StatusOK, o)
}

func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.uc.GetWorkflow.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	noCache(w)
	respond.JSON(w, http.StatusOK, workflow)
}

func (h *Handlers) IssuePayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.uc.IssuePayment.Execute(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if req.ID == "" {
		respond.Error(w, r, apperr.InvalidArgument("missing order id"))
		return
	}

	if err := h.uc.CancelOrder.Execute(r.Context(), identity(r), req.ID); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": string(order.StatusCancelled)})
}

func (h *Handlers) RequestRefund(w http.ResponseWriter, r *http.Request) {
	rf, err := h.uc.RequestRefund.Execute(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, rf)
}

func (h *Handlers) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	var params usecase.ApproveRefundParams
	if r.ContentLength != 0 {
		if err := decode(r, &params); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(w, r, err)
			return
		}
	}
	params.OrderID = chi.URLParam(r, "orderId")

	rf, err := h.uc.ApproveRefund.Execute(r.Context(), identity(r), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rf)
}

type notifyAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PaymentNotify always answers 200. FAIL asks the gateway to deliver again,
// which is only useful when nothing was committed.
func (h *Handlers) PaymentNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil {
		slog.WarnContext(r.Context(), "failed to read payment notification", "error", err)
		respond.JSON(w, http.StatusOK, notifyAck{Status: "FAIL", Message: "unreadable body"})
		return
	}

	outcome, err := h.uc.PaymentNotify.Execute(r.Context(), wechatpay.HeadersFrom(r.Header), body)
	if err != nil {
		slog.ErrorContext(r.Context(), "payment notification failed", "kind", apperr.KindOf(err).String(), "error", err)
		respond.JSON(w, http.StatusOK, notifyAck{Status: "FAIL", Message: apperr.MessageOf(err)})
		return
	}

	slog.InfoContext(r.Context(), "payment notification handled", "outcome", string(outcome))
	respond.JSON(w, http.StatusOK, notifyAck{Status: "SUCCESS"})
}

func (h *Handlers) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var params usecase.VerifyTicketParams
	if err := decode(r, &params); err != nil {
		respond.Error(w, r, err)
		return
	}

	res, err := h.uc.VerifyTicket.Execute(r.Context(), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handlers) ExportOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		params usecase.ExportOrdersParams
		err    error
	)
	if params.From, err = h.timeParam(q.Get("start_time"), false); err != nil {
		respond.Error(w, r, err)
		return
	}
	if params.To, err = h.timeParam(q.Get("end_time"), true); err != nil {
		respond.Error(w, r, err)
		return
	}
	params.Status = order.Status(q.Get("status"))

	res, err := h.uc.ExportOrders.Execute(r.Context(), identity(r), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Content); err != nil {
		slog.WarnContext(r.Context(), "failed to write export", "error", err)
	}
}
