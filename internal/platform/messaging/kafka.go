package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"tribunal/internal/shared/events"
)

// Kafka is the event bus adapter used by the outbox relay.
// Delivery is in-process publish/subscribe. The configured brokers are
// normalised and reported at startup so deployments can see which cluster
// the process was pointed at.
type Kafka struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Envelope
	brokers     []string
	logger      *slog.Logger
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	k := &Kafka{
		subscribers: make(map[string][]chan events.Envelope),
		brokers:     normalizeBrokers(brokers),
		logger:      logger,
	}
	if logger != nil {
		logger.Info("event bus ready",
			"event", "kafka_bus_ready",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"brokers", strings.Join(k.brokers, ","),
			"delivery", "in_process",
		)
	}
	return k, nil
}

// Brokers returns the trimmed, de-duplicated broker list.
func (k *Kafka) Brokers() []string {
	return append([]string(nil), k.brokers...)
}

func normalizeBrokers(brokers []string) []string {
	seen := make(map[string]struct{}, len(brokers))
	out := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		broker = strings.TrimSpace(broker)
		if broker == "" {
			continue
		}
		if _, ok := seen[broker]; ok {
			continue
		}
		seen[broker] = struct{}{}
		out = append(out, broker)
	}
	return out
}

func (k *Kafka) Publish(ctx context.Context, topic string, event events.Envelope) error {
	k.mu.RLock()
	subs := append([]chan events.Envelope(nil), k.subscribers[topic]...)
	k.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			if k.logger != nil {
				k.logger.Warn("dropping event for slow subscriber",
					"event", "kafka_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", event.EventID,
				)
			}
		}
	}

	if k.logger != nil {
		k.logger.Info("event published",
			"event", "kafka_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"subscribers", len(subs),
		)
	}
	return nil
}

// Subscribe registers handler for topic until ctx is cancelled. Handler
// errors are logged; the event is not redelivered.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	ch := make(chan events.Envelope, 128)

	k.mu.Lock()
	k.subscribers[topic] = append(k.subscribers[topic], ch)
	k.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				k.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil && k.logger != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (k *Kafka) removeSubscriber(topic string, target chan events.Envelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items := k.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	k.subscribers[topic] = filtered
}

func (k *Kafka) subscriberCount(topic string) int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.subscribers[topic])
}
