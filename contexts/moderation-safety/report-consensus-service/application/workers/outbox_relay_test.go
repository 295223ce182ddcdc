package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/adapters/memory"
	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type capturePublisher struct {
	topics []string
	events []ports.EventEnvelope
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func banEvent(t *testing.T, agentID string) *ports.EventEnvelope {
	t.Helper()
	event, err := application.NewEnvelope("evt-"+agentID, application.EventAgentBanned, "agent_id", agentID, time.Now(), map[string]any{"agent_id": agentID})
	require.NoError(t, err)
	return &event
}

func TestRunOncePublishesInOrderAndMarks(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"a-1", "a-2"} {
		_, err := store.UpsertBan(context.Background(), entities.BannedAgent{AgentID: id}, banEvent(t, id))
		require.NoError(t, err)
	}
	publisher := &capturePublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher}

	require.NoError(t, relay.RunOnce(context.Background()))
	assert.Equal(t, []string{application.EventAgentBanned, application.EventAgentBanned}, publisher.topics)
	assert.Equal(t, "a-1", publisher.events[0].PartitionKey)
	assert.Equal(t, "a-2", publisher.events[1].PartitionKey)

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceKeepsRowsWhenPublishFails(t *testing.T) {
	store := memory.NewStore()
	_, err := store.UpsertBan(context.Background(), entities.BannedAgent{AgentID: "a-1"}, banEvent(t, "a-1"))
	require.NoError(t, err)
	relay := OutboxRelay{Outbox: store, Publisher: &capturePublisher{err: errors.New("bus down")}}

	require.Error(t, relay.RunOnce(context.Background()))
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestConcurrentRelaysPublishEachRowOnce(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		_, err := store.UpsertBan(context.Background(), entities.BannedAgent{AgentID: id}, banEvent(t, id))
		require.NoError(t, err)
	}
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	api := &capturePublisher{}
	worker := &capturePublisher{}

	// api claims everything and fails on the first publish, leaving its
	// batch leased.
	stalled := OutboxRelay{Outbox: store, Publisher: &capturePublisher{err: errors.New("bus down")}, Clock: fixedClock{now: now}, Owner: "api"}
	require.Error(t, stalled.RunOnce(context.Background()))

	require.NoError(t, OutboxRelay{Outbox: store, Publisher: worker, Clock: fixedClock{now: now.Add(time.Second)}, Owner: "worker"}.RunOnce(context.Background()))
	assert.Empty(t, worker.events, "rows under a live lease are skipped")

	later := now.Add(defaultClaimLease)
	require.NoError(t, OutboxRelay{Outbox: store, Publisher: worker, Clock: fixedClock{now: later}, Owner: "worker"}.RunOnce(context.Background()))
	require.NoError(t, OutboxRelay{Outbox: store, Publisher: api, Clock: fixedClock{now: later}, Owner: "api"}.RunOnce(context.Background()))

	require.Len(t, worker.events, 3)
	assert.Empty(t, api.events)
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- OutboxRelay{Outbox: memory.NewStore(), Publisher: &capturePublisher{}, PollInterval: 5 * time.Millisecond}.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
