package inbox

import "time"

// Record marks an event as taken by one consumer. The (Consumer, EventID)
// pair is unique, so a redelivered event is recognised and skipped.
type Record struct {
	Consumer      string    `json:"consumer"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}
