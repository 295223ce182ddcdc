package events

import (
	"encoding/json"
	"time"
)

// Envelope is the shared event shape carried on the bus.
// Context-specific envelopes are converted at the composition root.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	SourceService  string          `json:"source_service"`
	OccurredAtUTC  time.Time       `json:"occurred_at_utc"`
	CorrelationID  string          `json:"correlation_id"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	PayloadVersion int             `json:"payload_version"`
	Payload        json.RawMessage `json:"payload"`
}
