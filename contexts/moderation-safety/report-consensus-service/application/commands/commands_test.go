package commands

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/adapters/memory"
	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/consensus"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/resolution"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type harness struct {
	store   *memory.Store
	posts   *memory.ContentStore
	feed    *memory.Feed
	reports ReportUseCase
	votes   VoteUseCase
	admin   AdminUseCase
}

func newHarness(threshold int) harness {
	store := memory.NewStore()
	store.SetAgent("admin", "moderator", true)
	store.SetAgent("agent-9", "spambot", false)
	posts := memory.NewContentStore(map[string]string{"post-1": "Buy cheap tokens", "post-2": "Hello"})
	feed := memory.NewFeed()
	executor := resolution.Executor{
		Contents: map[entities.TargetType]ports.ContentStore{
			entities.TargetTypePost:  posts,
			entities.TargetTypeAgent: store.Agents(),
		},
		Reports:       store,
		Bans:          store,
		Announcements: feed,
		Clock:         store,
	}
	evaluator := consensus.Evaluator{Threshold: threshold}
	return harness{
		store: store,
		posts: posts,
		feed:  feed,
		reports: ReportUseCase{
			Reports:   store,
			Consensus: evaluator,
			Executor:  executor,
			Clock:     store,
			IDGen:     store,
		},
		votes: VoteUseCase{
			Reports:   store,
			Consensus: evaluator,
			Executor:  executor,
			Clock:     store,
			IDGen:     store,
		},
		admin: AdminUseCase{
			Reports:  store,
			Bans:     store,
			Agents:   store.Agents(),
			Executor: executor,
			Clock:    store,
			IDGen:    store,
		},
	}
}

func participant(id string) entities.Participant {
	return entities.Participant{ID: id}
}

func admin() entities.Participant {
	return entities.Participant{ID: "admin", IsAdmin: true}
}

func (h harness) file(t *testing.T, reporter string, targetType string, targetID string) entities.Report {
	t.Helper()
	result, err := h.reports.FileReport(context.Background(), FileReportCommand{
		Reporter:   participant(reporter),
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     "spam content here",
	})
	require.NoError(t, err)
	return result.Report
}

func (h harness) vote(reportID string, voter string, choice string) (VoteResult, error) {
	return h.votes.CastVote(context.Background(), CastVoteCommand{
		Voter:    participant(voter),
		ReportID: reportID,
		Choice:   choice,
	})
}

func TestQuorumConfirmsReportAndRunsResolution(t *testing.T) {
	h := newHarness(3)
	report := h.file(t, "alice", "post", "post-1")
	require.Equal(t, entities.ReportStatusPending, report.Status)
	require.Equal(t, 1, report.VotesConfirm)
	require.Equal(t, 0, report.VotesDismiss)

	second, err := h.vote(report.ReportID, "bob", "confirm")
	require.NoError(t, err)
	require.False(t, second.Tipped)
	require.Nil(t, second.Resolution)
	require.Equal(t, 2, second.Report.VotesConfirm)

	third, err := h.vote(report.ReportID, "carol", "confirm")
	require.NoError(t, err)
	require.True(t, third.Tipped)
	require.Equal(t, entities.ReportStatusConfirmed, third.Report.Status)
	require.Equal(t, "carol", third.Report.ResolvedBy)
	require.NotNil(t, third.Report.ResolvedAt)
	require.NotNil(t, third.Resolution)
	assert.True(t, third.Resolution.Removed)
	assert.True(t, third.Resolution.Announced)

	exists, _ := h.posts.Exists(context.Background(), "post-1")
	assert.False(t, exists)
	require.Len(t, h.feed.Posts(), 1)

	outbox, err := h.store.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, application.EventReportResolved, outbox[0].EventType)
	assert.Equal(t, report.ReportID, outbox[0].PartitionKey)
}

func TestFileReportValidation(t *testing.T) {
	h := newHarness(3)
	cases := []struct {
		name string
		cmd  FileReportCommand
		want error
	}{
		{"short reason", FileReportCommand{Reporter: participant("alice"), TargetType: "post", TargetID: "post-1", Reason: "bad"}, domainerrors.ErrReasonTooShort},
		{"unknown target type", FileReportCommand{Reporter: participant("alice"), TargetType: "comment", TargetID: "c-1", Reason: "spam content here"}, domainerrors.ErrInvalidTarget},
		{"missing target id", FileReportCommand{Reporter: participant("alice"), TargetType: "post", TargetID: " ", Reason: "spam content here"}, domainerrors.ErrInvalidTarget},
		{"self report", FileReportCommand{Reporter: participant("agent-9"), TargetType: "agent", TargetID: "agent-9", Reason: "spam content here"}, domainerrors.ErrSelfReport},
		{"anonymous", FileReportCommand{TargetType: "post", TargetID: "post-1", Reason: "spam content here"}, domainerrors.ErrUnauthenticated},
		{"banned reporter", FileReportCommand{Reporter: entities.Participant{ID: "mallory", IsBanned: true}, TargetType: "post", TargetID: "post-1", Reason: "spam content here"}, domainerrors.ErrParticipantBanned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.reports.FileReport(context.Background(), tc.cmd)
			require.ErrorIs(t, err, tc.want)
		})
	}

	reports, err := h.store.ListReports(context.Background(), ports.ReportFilter{})
	require.NoError(t, err)
	require.Empty(t, reports)
}

func TestFileReportRejectsSecondOpenReportFromSameReporter(t *testing.T) {
	h := newHarness(3)
	h.file(t, "alice", "post", "post-1")

	_, err := h.reports.FileReport(context.Background(), FileReportCommand{
		Reporter:   participant("alice"),
		TargetType: "post",
		TargetID:   "post-1",
		Reason:     "still spam content",
	})
	require.ErrorIs(t, err, domainerrors.ErrDuplicateReport)

	other := h.file(t, "bob", "post", "post-1")
	require.Equal(t, entities.ReportStatusPending, other.Status)
}

func TestFileReportAcceptsKnowledgeEntryAlias(t *testing.T) {
	h := newHarness(3)
	report := h.file(t, "alice", "knowledge-entry", "kb-1")
	require.Equal(t, entities.TargetTypeKnowledge, report.TargetType)
}

func TestSeedVoteResolvesWhenThresholdIsOne(t *testing.T) {
	h := newHarness(1)
	result, err := h.reports.FileReport(context.Background(), FileReportCommand{
		Reporter:   participant("alice"),
		TargetType: "post",
		TargetID:   "post-1",
		Reason:     "spam content here",
	})
	require.NoError(t, err)
	require.Equal(t, entities.ReportStatusConfirmed, result.Report.Status)
	require.Equal(t, "alice", result.Report.ResolvedBy)
	require.NotNil(t, result.Resolution)
	assert.True(t, result.Resolution.Removed)
}

func TestDuplicateVoteLeavesTalliesUnchanged(t *testing.T) {
	h := newHarness(5)
	report := h.file(t, "alice", "post", "post-1")

	_, err := h.vote(report.ReportID, "bob", "dismiss")
	require.NoError(t, err)
	_, err = h.vote(report.ReportID, "bob", "confirm")
	require.ErrorIs(t, err, domainerrors.ErrDuplicateVote)
	_, err = h.vote(report.ReportID, "alice", "confirm")
	require.ErrorIs(t, err, domainerrors.ErrDuplicateVote, "the reporter's seed vote counts as a vote")

	stored, err := h.store.GetReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VotesConfirm)
	assert.Equal(t, 1, stored.VotesDismiss)

	votes, err := h.store.ListVotes(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Len(t, votes, 2)
}

func TestVotesOnResolvedReportAreRejected(t *testing.T) {
	h := newHarness(2)
	report := h.file(t, "alice", "post", "post-1")
	tipped, err := h.vote(report.ReportID, "bob", "confirm")
	require.NoError(t, err)
	require.True(t, tipped.Tipped)

	for _, choice := range []string{"confirm", "dismiss"} {
		_, err = h.vote(report.ReportID, "dave", choice)
		require.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)
	}
	stored, err := h.store.GetReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.VotesConfirm)
	assert.Equal(t, 0, stored.VotesDismiss)
}

func TestCastVoteValidation(t *testing.T) {
	h := newHarness(3)
	report := h.file(t, "alice", "post", "post-1")

	_, err := h.vote(report.ReportID, "bob", "maybe")
	require.ErrorIs(t, err, domainerrors.ErrInvalidVote)
	_, err = h.vote("missing", "bob", "confirm")
	require.ErrorIs(t, err, domainerrors.ErrReportNotFound)
	_, err = h.votes.CastVote(context.Background(), CastVoteCommand{
		Voter:    entities.Participant{ID: "mallory", IsBanned: true},
		ReportID: report.ReportID,
		Choice:   "confirm",
	})
	require.ErrorIs(t, err, domainerrors.ErrParticipantBanned)
}

type voteLabels struct {
	mu     sync.Mutex
	labels map[string]int
}

func (m *voteLabels) ReportFiled(entities.TargetType)              {}
func (m *voteLabels) ReportResolved(entities.ReportStatus, string) {}
func (m *voteLabels) ExecutorStepFailed(string)                    {}
func (m *voteLabels) VoteCast(choice entities.VoteChoice, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[string(choice)+"/"+outcome]++
}

func TestRejectedVoteChoicesShareOneMetricLabel(t *testing.T) {
	h := newHarness(3)
	report := h.file(t, "alice", "post", "post-1")
	recorder := &voteLabels{labels: map[string]int{}}
	h.votes.Metrics = recorder

	for i := 0; i < 50; i++ {
		_, err := h.vote(report.ReportID, "bob", fmt.Sprintf("junk-%d", i))
		require.ErrorIs(t, err, domainerrors.ErrInvalidVote)
	}

	assert.Equal(t, map[string]int{"invalid/rejected": 50}, recorder.labels)
}

func TestDismissVotesNeverCloseReport(t *testing.T) {
	h := newHarness(2)
	report := h.file(t, "alice", "post", "post-1")
	for i := 0; i < 5; i++ {
		result, err := h.vote(report.ReportID, fmt.Sprintf("voter-%d", i), "dismiss")
		require.NoError(t, err)
		require.False(t, result.Tipped)
	}
	stored, err := h.store.GetReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusPending, stored.Status)
	assert.Equal(t, 5, stored.VotesDismiss)
}

func TestConcurrentVotesResolveExactlyOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(3)
	report := h.file(t, "alice", "post", "post-1")
	_, err := h.vote(report.ReportID, "bob", "confirm")
	require.NoError(t, err)

	const voters = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		tipped   int
		resolved int
		accepted int
	)
	start := make(chan struct{})
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			result, err := h.vote(report.ReportID, fmt.Sprintf("voter-%d", i), "confirm")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)
				resolved++
				return
			}
			accepted++
			if result.Tipped {
				tipped++
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, tipped)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, voters-1, resolved)
	assert.Equal(t, 1, h.posts.Deletes())
	assert.Len(t, h.feed.Posts(), 1)

	stored, err := h.store.GetReport(context.Background(), report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.VotesConfirm)
	assert.Equal(t, entities.ReportStatusConfirmed, stored.Status)
}

func TestQuorumClosesOtherReportsAgainstTarget(t *testing.T) {
	h := newHarness(2)
	first := h.file(t, "alice", "post", "post-1")
	sibling := h.file(t, "bob", "post", "post-1")
	unrelated := h.file(t, "carol", "post", "post-2")

	result, err := h.vote(first.ReportID, "dave", "confirm")
	require.NoError(t, err)
	require.True(t, result.Tipped)
	require.EqualValues(t, 1, result.Resolution.ClosedReports)

	closed, err := h.store.GetReport(context.Background(), sibling.ReportID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusConfirmed, closed.Status)
	assert.Equal(t, "dave", closed.ResolvedBy)
	require.NotNil(t, closed.ResolvedAt)

	open, err := h.store.GetReport(context.Background(), unrelated.ReportID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusPending, open.Status)
}

func TestAgentReportQuorumBansAgent(t *testing.T) {
	h := newHarness(2)
	report := h.file(t, "alice", "agent", "agent-9")

	result, err := h.vote(report.ReportID, "bob", "confirm")
	require.NoError(t, err)
	require.True(t, result.Resolution.Banned)

	banned, err := h.store.LookupParticipant(context.Background(), "agent-9")
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.False(t, banned.CanMutate())
}
