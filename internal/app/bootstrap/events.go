package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
	"tribunal/internal/platform/messaging"
	"tribunal/internal/shared/events"
)

// BusPublisher adapts the engine's outbox envelope to the shared bus shape.
type BusPublisher struct {
	Bus *messaging.Kafka
}

func (p BusPublisher) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	if p.Bus == nil {
		return errors.New("event bus is not configured")
	}
	return p.Bus.Publish(ctx, topic, toSharedEnvelope(event))
}

func toSharedEnvelope(event ports.EventEnvelope) events.Envelope {
	return events.Envelope{
		EventID:        event.EventID,
		EventType:      event.EventType,
		SourceService:  event.SourceService,
		OccurredAtUTC:  event.OccurredAt.UTC(),
		CorrelationID:  event.TraceID,
		EntityType:     strings.TrimSuffix(event.PartitionKeyPath, "_id"),
		EntityID:       event.PartitionKey,
		PayloadVersion: event.SchemaVersion,
		Payload:        event.Data,
	}
}

// AuditConsumer writes every moderation event to the structured log so
// operators can follow resolutions and bans from the worker.
type AuditConsumer struct {
	Logger *slog.Logger
}

const auditConsumerGroup = "moderation-audit-cg"

func (c AuditConsumer) Start(ctx context.Context, bus *messaging.Kafka) error {
	for _, topic := range []string{application.EventReportResolved, application.EventAgentBanned} {
		if err := bus.Subscribe(ctx, topic, auditConsumerGroup, c.Handle); err != nil {
			return err
		}
	}
	return nil
}

func (c AuditConsumer) Handle(_ context.Context, event events.Envelope) error {
	application.ResolveLogger(c.Logger).Info("moderation event observed",
		"event", "moderation_audit_event",
		"module", "internal/app/bootstrap",
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
	)
	return nil
}
