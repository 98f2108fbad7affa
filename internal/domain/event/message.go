package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message is the envelope every service event travels in on Kafka. Payload is
// one of the typed structs of this package, kept raw until a consumer picks
// the type apart.
type Message struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	Producer      string          `json:"producer"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Decode parses an envelope and rejects ones that cannot be deduplicated or
// routed.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if m.ID == "" || m.Type == "" {
		return Message{}, errors.New("decode envelope: id and type are required")
	}
	return m, nil
}
