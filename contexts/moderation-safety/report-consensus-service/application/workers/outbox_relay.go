package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
	defaultClaimLease   = 30 * time.Second
)

// OutboxRelay forwards resolution and ban events written alongside the state
// change to the event bus. Each batch is leased to Owner first, so several
// relays can poll the same table without publishing a row twice. Rows left
// unpublished when a relay stops become claimable again once the lease ends.
type OutboxRelay struct {
	Outbox       ports.OutboxRepository
	Publisher    ports.EventPublisher
	Clock        ports.Clock
	Owner        string
	BatchSize    int
	PollInterval time.Duration
	ClaimLease   time.Duration
	Logger       *slog.Logger
}

// Run polls until ctx is cancelled. Cycle errors are logged and retried on
// the next tick.
func (r OutboxRelay) Run(ctx context.Context) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_ = r.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce publishes one batch. A row is marked published only after the bus
// accepted it, and the cycle stops at the first failure so ordering per
// partition survives a retry.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}

	lease := r.ClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	pending, err := r.Outbox.ClaimPendingOutbox(ctx, ports.OutboxClaim{
		Owner: r.Owner,
		Limit: limit,
		Now:   now,
		Lease: lease,
	})
	if err != nil {
		logger.Error("moderation outbox claim failed",
			"event", "moderation_outbox_claim_failed",
			"module", "moderation-safety/report-consensus-service",
			"layer", "worker",
			"owner", r.Owner,
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("moderation outbox decode failed",
				"event", "moderation_outbox_decode_failed",
				"module", "moderation-safety/report-consensus-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("moderation outbox publish failed",
				"event", "moderation_outbox_publish_failed",
				"module", "moderation-safety/report-consensus-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", topic,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("moderation outbox mark failed",
				"event", "moderation_outbox_mark_failed",
				"module", "moderation-safety/report-consensus-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("moderation outbox batch relayed",
		"event", "moderation_outbox_relayed",
		"module", "moderation-safety/report-consensus-service",
		"layer", "worker",
		"owner", r.Owner,
		"published_count", len(pending),
	)
	return nil
}
