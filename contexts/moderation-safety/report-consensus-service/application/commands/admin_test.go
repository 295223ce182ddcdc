package commands

import (
	"context"
	"testing"
	"time"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverridePathRequiresModerator(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()
	actors := []entities.Participant{
		participant("alice"),
		{ID: "admin", IsAdmin: true, IsBanned: true},
	}
	for _, actor := range actors {
		_, err := h.admin.AdminDelete(ctx, AdminDeleteCommand{Actor: actor, TargetType: "post", TargetID: "post-1"})
		require.ErrorIs(t, err, domainerrors.ErrForbidden)
		_, err = h.admin.AdminBan(ctx, AdminBanCommand{Actor: actor, AgentID: "agent-9"})
		require.ErrorIs(t, err, domainerrors.ErrForbidden)
		require.ErrorIs(t, h.admin.AdminUnban(ctx, AdminUnbanCommand{Actor: actor, AgentID: "agent-9"}), domainerrors.ErrForbidden)
		_, err = h.admin.AdminVerdict(ctx, AdminVerdictCommand{Actor: actor, ReportID: "r", Outcome: "dismissed"})
		require.ErrorIs(t, err, domainerrors.ErrForbidden)
	}

	_, err := h.admin.AdminDelete(ctx, AdminDeleteCommand{TargetType: "post", TargetID: "post-1"})
	require.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

	exists, _ := h.posts.Exists(ctx, "post-1")
	assert.True(t, exists)
}

func TestAdminDeleteIsIdempotent(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()
	report := h.file(t, "alice", "post", "post-1")

	first, err := h.admin.AdminDelete(ctx, AdminDeleteCommand{Actor: admin(), TargetType: "post", TargetID: "post-1", Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, first.Removed)
	assert.EqualValues(t, 1, first.ClosedReports)
	assert.False(t, first.Announced)
	assert.Empty(t, h.feed.Posts())

	closed, err := h.store.GetReport(ctx, report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusConfirmed, closed.Status)
	assert.Equal(t, "admin", closed.ResolvedBy)

	second, err := h.admin.AdminDelete(ctx, AdminDeleteCommand{Actor: admin(), TargetType: "post", TargetID: "post-1"})
	require.NoError(t, err)
	assert.False(t, second.Removed)
	assert.True(t, second.TargetMissing)
	assert.Empty(t, second.Failures)
}

func TestAdminDeleteValidatesTarget(t *testing.T) {
	h := newHarness(3)
	_, err := h.admin.AdminDelete(context.Background(), AdminDeleteCommand{Actor: admin(), TargetType: "widget", TargetID: "w-1"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidTarget)
	_, err = h.admin.AdminDelete(context.Background(), AdminDeleteCommand{Actor: admin(), TargetType: "agent", TargetID: "ghost"})
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound)
}

func TestAdminDeleteAgentBansWithoutAnnouncement(t *testing.T) {
	h := newHarness(3)
	result, err := h.admin.AdminDelete(context.Background(), AdminDeleteCommand{Actor: admin(), TargetType: "agent", TargetID: "agent-9", Reason: "abuse"})
	require.NoError(t, err)
	assert.True(t, result.Banned)
	assert.Empty(t, h.feed.Posts())
}

func TestAdminBanTwiceRefreshesRecord(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()

	first, err := h.admin.AdminBan(ctx, AdminBanCommand{Actor: admin(), AgentID: "agent-9", Reason: "abuse"})
	require.NoError(t, err)
	assert.True(t, first.Resolution.Announced)
	time.Sleep(2 * time.Millisecond)
	second, err := h.admin.AdminBan(ctx, AdminBanCommand{Actor: admin(), AgentID: "agent-9", Reason: "repeated abuse"})
	require.NoError(t, err)

	bans, err := h.store.ListBans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "repeated abuse", bans[0].Reason)
	assert.Equal(t, "admin", bans[0].BannedBy)
	assert.True(t, second.Ban.BannedAt.After(first.Ban.BannedAt))

	posts := h.feed.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, `[Moderation] agent "spambot" was banned: abuse`, posts[0].Text)

	outbox, err := h.store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, outbox, 2)
	assert.Equal(t, application.EventAgentBanned, outbox[0].EventType)
	assert.Equal(t, "agent-9", outbox[0].PartitionKey)
}

func TestAdminBanRejectsUnknownAgentAndSelfBan(t *testing.T) {
	h := newHarness(3)
	_, err := h.admin.AdminBan(context.Background(), AdminBanCommand{Actor: admin(), AgentID: "ghost"})
	require.ErrorIs(t, err, domainerrors.ErrAgentNotFound)
	_, err = h.admin.AdminBan(context.Background(), AdminBanCommand{Actor: admin(), AgentID: "admin"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
}

func TestAdminUnban(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()
	require.ErrorIs(t, h.admin.AdminUnban(ctx, AdminUnbanCommand{Actor: admin(), AgentID: "agent-9"}), domainerrors.ErrBanNotFound)

	_, err := h.admin.AdminBan(ctx, AdminBanCommand{Actor: admin(), AgentID: "agent-9", Reason: "abuse"})
	require.NoError(t, err)
	require.NoError(t, h.admin.AdminUnban(ctx, AdminUnbanCommand{Actor: admin(), AgentID: "agent-9"}))

	_, found, err := h.store.GetBan(ctx, "agent-9")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, h.feed.Posts(), 1, "unban is silent")
}

func TestAdminVerdictConfirmedRunsResolution(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()
	report := h.file(t, "alice", "post", "post-1")
	sibling := h.file(t, "bob", "post", "post-1")

	result, err := h.admin.AdminVerdict(ctx, AdminVerdictCommand{Actor: admin(), ReportID: report.ReportID, Outcome: "Confirmed"})
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusConfirmed, result.Report.Status)
	assert.Equal(t, "admin", result.Report.ResolvedBy)
	require.NotNil(t, result.Resolution)
	assert.True(t, result.Resolution.Removed)
	assert.EqualValues(t, 1, result.Resolution.ClosedReports)

	posts := h.feed.Posts()
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Text, "spam content here")

	closed, err := h.store.GetReport(ctx, sibling.ReportID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusConfirmed, closed.Status)

	_, err = h.admin.AdminVerdict(ctx, AdminVerdictCommand{Actor: admin(), ReportID: report.ReportID, Outcome: "dismissed"})
	require.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)
}

func TestAdminVerdictDismissedOnlyClosesReport(t *testing.T) {
	h := newHarness(3)
	ctx := context.Background()
	report := h.file(t, "alice", "post", "post-1")

	result, err := h.admin.AdminVerdict(ctx, AdminVerdictCommand{Actor: admin(), ReportID: report.ReportID, Outcome: "dismissed"})
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusDismissed, result.Report.Status)
	assert.Nil(t, result.Resolution)

	exists, _ := h.posts.Exists(ctx, "post-1")
	assert.True(t, exists)
	assert.Empty(t, h.feed.Posts())

	_, err = h.vote(report.ReportID, "bob", "confirm")
	require.ErrorIs(t, err, domainerrors.ErrAlreadyResolved)
}

func TestAdminVerdictValidation(t *testing.T) {
	h := newHarness(3)
	report := h.file(t, "alice", "post", "post-1")
	_, err := h.admin.AdminVerdict(context.Background(), AdminVerdictCommand{Actor: admin(), ReportID: report.ReportID, Outcome: "pending"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidOutcome)
	_, err = h.admin.AdminVerdict(context.Background(), AdminVerdictCommand{Actor: admin(), ReportID: "missing", Outcome: "confirmed"})
	require.ErrorIs(t, err, domainerrors.ErrReportNotFound)
}
