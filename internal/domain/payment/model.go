package payment

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusRefunded  Status = "refunded"
)

const MethodWxPay = "wxpay"

// Payment is the single gateway payment of an order. PaymentNo is the
// merchant trade number sent to the gateway as out_trade_no.
type Payment struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	PaymentNo     string    `json:"payment_no"`
	Amount        int64     `json:"amount"`
	Status        Status    `json:"status"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Intent is what the rider's client needs to open the gateway's payment sheet.
type Intent struct {
	AppID     string `json:"appId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}
