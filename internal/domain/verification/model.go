package verification

import "time"

// Event is one successful ticket scan. Events are append-only and only ever
// counted to enforce the per-day and per-half-day scan limits.
type Event struct {
	ID        string    `json:"id"`
	RiderID   string    `json:"rider_id"`
	CreatedAt time.Time `json:"created_at"`
}
