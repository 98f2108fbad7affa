package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New builds a pending outbox row for payload. correlationID groups all events
// of one order (or one rider for ticket scans).
func New(eventType, correlationID, producer string, payload any, now time.Time) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:            uuid.New().String(),
		EventType:     eventType,
		Payload:       body,
		Status:        StatusNew,
		CorrelationID: correlationID,
		Producer:      producer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
