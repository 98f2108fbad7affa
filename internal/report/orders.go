// Package report renders order listings as spreadsheets for the finance team.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/attractive-boy/schoolbus-back/internal/domain/order"

	"github.com/xuri/excelize/v2"
)

const OrdersSheet = "Orders"

var orderHeader = []any{
	"No.", "Order No", "Rider", "Route", "Round Trip", "Months", "Remark", "Amount (CNY)", "Refund (CNY)",
}

// WriteOrders writes one row per order to w as an xlsx workbook.
func WriteOrders(w io.Writer, orders []*order.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(OrdersSheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	if err := sw.SetColWidth(2, 2, 28); err != nil {
		return err
	}
	if err := sw.SetColWidth(3, 4, 20); err != nil {
		return err
	}

	if err := sw.SetRow("A1", orderHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, orderRow(i+1, o)); err != nil {
			return fmt.Errorf("write order %s: %w", o.OrderNo, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func orderRow(index int, o *order.Order) []any {
	roundTrip := "No"
	if o.TripType == order.TripRoundTrip {
		roundTrip = "Yes"
	}

	refund := ""
	if o.RefundAmount != nil {
		refund = Yuan(*o.RefundAmount)
	}

	return []any{
		index,
		o.OrderNo,
		o.RiderName,
		o.RouteName,
		roundTrip,
		strings.Join(order.Months(o.SelectedDates), ", "),
		o.Remark,
		Yuan(o.TotalAmount),
		refund,
	}
}

// Yuan formats an amount in fen as major units with two decimals.
func Yuan(fen int64) string {
	sign := ""
	if fen < 0 {
		sign = "-"
		fen = -fen
	}
	return fmt.Sprintf("%s%d.%02d", sign, fen/100, fen%100)
}
