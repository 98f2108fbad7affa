package outbox

import (
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/domain/event"
)

const (
	StatusNew        = "new"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
)

type Event struct {
	ID            string    `json:"id"`
	EventType     string    `json:"event_type"`
	Payload       []byte    `json:"payload"`
	Status        string    `json:"status"`
	CorrelationID string    `json:"correlation_id"`
	CausationID   string    `json:"causation_id"`
	Producer      string    `json:"producer"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Envelope wraps the row for publishing. OccurredAt is the time the row was
// written, not the time it was relayed.
func (e *Event) Envelope() event.Message {
	return event.Message{
		ID:            e.ID,
		Type:          e.EventType,
		CorrelationID: e.CorrelationID,
		CausationID:   e.CausationID,
		Producer:      e.Producer,
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       e.Payload,
	}
}
