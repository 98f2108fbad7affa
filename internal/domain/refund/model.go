package refund

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
)

// Refund records money returned for the unused days of an order.
type Refund struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	RefundNo      string    `json:"refund_no"`
	Amount        int64     `json:"amount"`
	UsedDays      int       `json:"used_days"`
	RemainingDays int       `json:"remaining_days"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
