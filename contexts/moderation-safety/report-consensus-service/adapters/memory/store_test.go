package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unencodable(partitionKey string) *ports.EventEnvelope {
	return &ports.EventEnvelope{
		EventID:      "evt-" + partitionKey,
		EventType:    "moderation.agent_banned",
		PartitionKey: partitionKey,
		Data:         json.RawMessage("{"),
	}
}

func TestUpsertBanFailsWhenEventCannotBeEncoded(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.UpsertBan(ctx, entities.BannedAgent{AgentID: "agent-9", BannedAt: time.Now()}, unencodable("agent-9"))
	require.ErrorContains(t, err, "encode outbox event")

	_, found, err := store.GetBan(ctx, "agent-9")
	require.NoError(t, err)
	assert.False(t, found, "ban is not stored without its event")
	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecordVoteLeavesStateWhenResolutionEventCannotBeEncoded(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	_, err := store.CreateReport(ctx, entities.Report{
		ReportID:     "r-1",
		ReporterID:   "alice",
		TargetType:   entities.TargetTypePost,
		TargetID:     "post-1",
		Status:       entities.ReportStatusPending,
		VotesConfirm: 1,
		CreatedAt:    now,
	}, entities.Vote{ReportID: "r-1", VoterID: "alice", Choice: entities.VoteChoiceConfirm, CreatedAt: now}, nil)
	require.NoError(t, err)

	tip := func(event *ports.EventEnvelope) ports.Evaluator {
		return func(report entities.Report) (ports.Transition, bool) {
			if report.VotesConfirm < 2 {
				return ports.Transition{}, false
			}
			return ports.Transition{Status: entities.ReportStatusConfirmed, ResolvedBy: "bob", ResolvedAt: now, Event: event}, true
		}
	}
	vote := entities.Vote{ReportID: "r-1", VoterID: "bob", Choice: entities.VoteChoiceConfirm, CreatedAt: now}

	_, err = store.RecordVote(ctx, vote, tip(unencodable("r-1")))
	require.Error(t, err)

	report, err := store.GetReport(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusPending, report.Status)
	assert.Equal(t, 1, report.VotesConfirm)
	votes, err := store.ListVotes(ctx, "r-1")
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	outcome, err := store.RecordVote(ctx, vote, tip(&ports.EventEnvelope{EventID: "evt-r-1", EventType: "moderation.report_resolved", PartitionKey: "r-1"}))
	require.NoError(t, err, "the rejected vote can be retried")
	assert.True(t, outcome.Tipped)
	assert.Equal(t, entities.ReportStatusConfirmed, outcome.Report.Status)
	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r-1", pending[0].PartitionKey)
}

func TestClaimPendingOutboxSkipsLiveLeases(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	for _, id := range []string{"a-1", "a-2"} {
		_, err := store.UpsertBan(ctx, entities.BannedAgent{AgentID: id, BannedAt: now},
			&ports.EventEnvelope{EventID: "evt-" + id, EventType: "moderation.agent_banned", PartitionKey: id})
		require.NoError(t, err)
	}

	first, err := store.ClaimPendingOutbox(ctx, ports.OutboxClaim{Owner: "api", Limit: 1, Now: now, Lease: time.Minute})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "a-1", first[0].PartitionKey)

	second, err := store.ClaimPendingOutbox(ctx, ports.OutboxClaim{Owner: "worker", Limit: 10, Now: now, Lease: time.Minute})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "a-2", second[0].PartitionKey)

	require.NoError(t, store.MarkOutboxPublished(ctx, second[0].OutboxID, now))
	expired, err := store.ClaimPendingOutbox(ctx, ports.OutboxClaim{Owner: "worker", Limit: 10, Now: now.Add(time.Minute), Lease: time.Minute})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, first[0].OutboxID, expired[0].OutboxID)
}
