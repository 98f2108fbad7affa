package usecase

import (
	"context"
	"regexp"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var billingMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type ListOrders struct {
	orderRepo OrderStore
}

func NewListOrders(orderRepo OrderStore) *ListOrders {
	return &ListOrders{orderRepo: orderRepo}
}

type ListOrdersParams struct {
	Filter   order.Filter
	Current  int
	PageSize int
	// AllRiders asks for every rider's orders. Only administrators may set it.
	AllRiders bool
}

type ListOrdersResult struct {
	List  []*order.Order `json:"list"`
	Total int            `json:"total"`
}

func (uc *ListOrders) Execute(ctx context.Context, id auth.Identity, params ListOrdersParams) (*ListOrdersResult, error) {
	f := params.Filter

	if params.AllRiders {
		if !id.IsAdmin() {
			return nil, apperr.PermissionDenied("only administrators may list all orders")
		}
	} else {
		f.RiderID = id.UserID
	}

	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "unknown status %q", f.Status)
	}
	if f.TripType != "" && !f.TripType.Valid() {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "unknown trip type %q", f.TripType)
	}
	if f.BillingMonth != "" && !billingMonthRe.MatchString(f.BillingMonth) {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "billing month %q is not YYYY-MM", f.BillingMonth)
	}

	current, size := params.Current, params.PageSize
	if current < 1 {
		current = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	f.Limit = size
	f.Offset = (current - 1) * size

	orders, total, err := uc.orderRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*order.Order{}
	}

	return &ListOrdersResult{List: orders, Total: total}, nil
}
