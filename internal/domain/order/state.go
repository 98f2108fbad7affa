package order

import (
	"github.com/attractive-boy/schoolbus-back/internal/apperr"
)

var transitions = map[Status][]Status{
	StatusPendingPayment:  {StatusPaid, StatusCancelled},
	StatusPaid:            {StatusRefundRequested, StatusRefunded},
	StatusRefundRequested: {StatusRefunded},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusCancelled, StatusRefundRequested, StatusRefunded:
		return true
	}
	return false
}

// TransitionTo moves the order to next or fails with FailedPrecondition.
func (o *Order) TransitionTo(next Status) error {
	if !CanTransition(o.Status, next) {
		return apperr.Newf(apperr.KindFailedPrecondition, "order %s cannot move from %s to %s", o.OrderNo, o.Status, next)
	}
	o.Status = next
	return nil
}
