package refund

import (
	"github.com/attractive-boy/schoolbus-back/internal/apperr"
)

// Proration is the split of an order's ride dates around a reference day.
type Proration struct {
	UsedDays      int
	RemainingDays int
	Amount        int64
}

// Prorate refunds the share of total that belongs to dates on or after today.
// Dates strictly before today count as used. Dates and today are YYYY-MM-DD.
//
// The amount is remaining/count*total rounded half up to the minor unit, so a
// fully unused order refunds exactly total and a fully used one refunds zero.
func Prorate(dates []string, total int64, today string) (Proration, error) {
	count := len(dates)
	if count == 0 {
		return Proration{}, apperr.FailedPrecondition("nothing to refund: order has no ride dates")
	}

	var used int
	for _, d := range dates {
		if d < today {
			used++
		}
	}
	remaining := count - used

	n := int64(remaining) * total
	amount := (2*n + int64(count)) / (2 * int64(count))

	return Proration{
		UsedDays:      used,
		RemainingDays: remaining,
		Amount:        amount,
	}, nil
}
