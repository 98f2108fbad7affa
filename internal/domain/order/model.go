package order

import (
	"time"
)

type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
	StatusRefundRequested Status = "refund_requested"
	StatusRefunded        Status = "refunded"
)

type TripType string

const (
	TripSingle    TripType = "single"
	TripRoundTrip TripType = "round_trip"
)

func (t TripType) Valid() bool {
	return t == TripSingle || t == TripRoundTrip
}

// Order is a rider's purchase of rides on one route for a set of dates.
// Amounts are in minor currency units (fen).
type Order struct {
	ID            string    `json:"id"`
	OrderNo       string    `json:"order_no"`
	RiderID       string    `json:"rider_id"`
	RiderName     string    `json:"rider_name"`
	RouteID       string    `json:"route_id"`
	RouteName     string    `json:"route_name,omitempty"`
	SelectedDates []string  `json:"selected_dates"` // YYYY-MM-DD, sorted, unique
	TripType      TripType  `json:"trip_type"`
	TotalAmount   int64     `json:"total_amount"`
	Status        Status    `json:"status"`
	RefundAmount  *int64    `json:"refund_amount,omitempty"`
	UsedDays      *int      `json:"used_days,omitempty"`
	RemainingDays *int      `json:"remaining_days,omitempty"`
	Remark        string    `json:"remark,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RidesOn reports whether date is one of the order's ride dates.
func (o *Order) RidesOn(date string) bool {
	for _, d := range o.SelectedDates {
		if d == date {
			return true
		}
	}
	return false
}

// Filter narrows order listings. Zero values mean "no constraint".
type Filter struct {
	RiderID      string
	OrderNo      string
	RouteName    string
	RiderName    string
	Status       Status
	TripType     TripType
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	BillingMonth string // YYYY-MM
	Offset       int
	Limit        int
}
