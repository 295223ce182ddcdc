package queries

import (
	"context"
	"testing"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/adapters/memory"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *memory.Store, id string, confirms int, createdAt time.Time, status entities.ReportStatus) {
	t.Helper()
	_, err := store.CreateReport(context.Background(), entities.Report{
		ReportID:     id,
		ReporterID:   "reporter-" + id,
		TargetType:   entities.TargetTypePost,
		TargetID:     "post-" + id,
		Reason:       "spam content here",
		Status:       status,
		VotesConfirm: confirms,
		CreatedAt:    createdAt,
	}, entities.Vote{ReportID: id, VoterID: "reporter-" + id, Choice: entities.VoteChoiceConfirm, CreatedAt: createdAt}, nil)
	require.NoError(t, err)
}

func TestListReportsOrdersByConfirmsThenNewest(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seed(t, store, "a", 1, base, entities.ReportStatusPending)
	seed(t, store, "b", 2, base, entities.ReportStatusPending)
	seed(t, store, "c", 1, base.Add(time.Hour), entities.ReportStatusPending)
	seed(t, store, "d", 5, base, entities.ReportStatusConfirmed)

	uc := ReportQueryUseCase{Reports: store, Bans: store}
	pending, err := uc.ListReports(context.Background(), "pending", 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(pending))
	for _, report := range pending {
		ids = append(ids, report.ReportID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)

	all, err := uc.ListReports(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "d", all[0].ReportID)

	_, err = uc.ListReports(context.Background(), "open", 10)
	require.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxListLimit, clampLimit(5000))
}

func TestGetReportAndVotes(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "a", 1, time.Now().UTC(), entities.ReportStatusPending)
	uc := ReportQueryUseCase{Reports: store, Bans: store}

	_, err := uc.GetReport(context.Background(), "nope")
	require.ErrorIs(t, err, domainerrors.ErrReportNotFound)

	votes, err := uc.ListVotes(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "reporter-a", votes[0].VoterID)

	_, err = uc.ListVotes(context.Background(), "nope")
	require.ErrorIs(t, err, domainerrors.ErrReportNotFound)
}

func TestListBansIsAdminOnly(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	_, err := store.UpsertBan(context.Background(), entities.BannedAgent{AgentID: "old", BannedAt: now.Add(-time.Hour)}, nil)
	require.NoError(t, err)
	_, err = store.UpsertBan(context.Background(), entities.BannedAgent{AgentID: "new", BannedAt: now}, nil)
	require.NoError(t, err)
	uc := ReportQueryUseCase{Reports: store, Bans: store}

	_, err = uc.ListBans(context.Background(), entities.Participant{ID: "alice"}, 10)
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	bans, err := uc.ListBans(context.Background(), entities.Participant{ID: "root", IsAdmin: true}, 10)
	require.NoError(t, err)
	require.Len(t, bans, 2)
	assert.Equal(t, "new", bans[0].AgentID)
}
