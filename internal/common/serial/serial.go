// Package serial generates human-traceable business numbers such as order and
// payment numbers: a prefix, the creation time in milliseconds and a random suffix.
package serial

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	OrderPrefix   = "ORDER"
	PaymentPrefix = "PAY"
	RefundPrefix  = "REF"
)

func New(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d%04d", prefix, now.UnixMilli(), rand.Intn(10000))
}
