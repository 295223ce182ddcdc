package application

import (
	"encoding/json"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

const (
	EventReportResolved = "moderation.report_resolved"
	EventAgentBanned    = "moderation.agent_banned"

	sourceService = "report-consensus-service"
)

// NewEnvelope builds the outbox envelope for a moderation event. Events are
// partitioned by the entity they describe so consumers see them in order.
func NewEnvelope(
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}
