package route

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Route is a bus schedule riders can buy days on. DailyPrice is in fen.
type Route struct {
	ID           string    `json:"id"`
	Name         string    `json:"route_name"`
	DailyPrice   int64     `json:"daily_price"`
	Status       Status    `json:"status"`
	ServiceDates []string  `json:"service_dates"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *Route) Active() bool {
	return r.Status == StatusActive
}

// Serves reports whether the route runs on date. A route without explicit
// service dates runs every day.
func (r *Route) Serves(date string) bool {
	if len(r.ServiceDates) == 0 {
		return true
	}
	for _, d := range r.ServiceDates {
		if d == date {
			return true
		}
	}
	return false
}
