package usecase

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"
	"github.com/attractive-boy/schoolbus-back/internal/clock"
	"github.com/attractive-boy/schoolbus-back/internal/domain/order"
	"github.com/attractive-boy/schoolbus-back/internal/report"
)

type ExportOrders struct {
	orderRepo OrderStore
	calendar  clock.Calendar
}

func NewExportOrders(orderRepo OrderStore, calendar clock.Calendar) *ExportOrders {
	return &ExportOrders{orderRepo: orderRepo, calendar: calendar}
}

type ExportOrdersParams struct {
	From   *time.Time
	To     *time.Time
	Status order.Status
}

type ExportOrdersResult struct {
	FileName string
	Rows     int
	Content  []byte
}

// Execute renders every order created in [From, To] as a spreadsheet.
func (uc *ExportOrders) Execute(ctx context.Context, id auth.Identity, params ExportOrdersParams) (*ExportOrdersResult, error) {
	if !id.IsAdmin() {
		return nil, apperr.PermissionDenied("only administrators may export orders")
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "unknown status %q", params.Status)
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return nil, apperr.InvalidArgument("end time is before start time")
	}

	orders, _, err := uc.orderRepo.List(ctx, order.Filter{
		Status:      params.Status,
		CreatedFrom: params.From,
		CreatedTo:   params.To,
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("no orders in the selected range")
	}

	var buf bytes.Buffer
	if err := report.WriteOrders(&buf, orders); err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}

	return &ExportOrdersResult{
		// Stamped in business-local time.
		FileName: fmt.Sprintf("orders_%s.xlsx", uc.calendar.Now().Format("20060102150405")),
		Rows:     len(orders),
		Content:  buf.Bytes(),
	}, nil
}
