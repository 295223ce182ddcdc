package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/consensus"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/resolution"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

// CastVoteCommand is the write-model input for a single ballot.
type CastVoteCommand struct {
	Voter    entities.Participant
	ReportID string
	Choice   string
}

// VoteResult returns the report as it stood right after the vote. Tipped is
// set only for the vote that resolved the report; Resolution is populated
// alongside it.
type VoteResult struct {
	Report     entities.Report
	Tipped     bool
	Resolution *resolution.Result
}

type VoteUseCase struct {
	Reports   ports.ReportRepository
	Consensus consensus.Evaluator
	Executor  resolution.Executor
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Metrics   ports.Metrics
	Logger    *slog.Logger
}

// CastVote records one vote per participant per report. The tally update and
// the quorum check happen under the repository's lock, so concurrent voters
// crossing the threshold produce exactly one resolution.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (VoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	metrics := application.ResolveMetrics(uc.Metrics)
	voterID := strings.TrimSpace(cmd.Voter.ID)
	reportID := strings.TrimSpace(cmd.ReportID)
	choice := entities.VoteChoice(strings.ToLower(strings.TrimSpace(cmd.Choice)))

	if voterID == "" {
		return VoteResult{}, domainerrors.ErrUnauthenticated
	}
	if !cmd.Voter.CanMutate() {
		return VoteResult{}, domainerrors.ErrParticipantBanned
	}
	if reportID == "" {
		return VoteResult{}, domainerrors.ErrInvalidRequest
	}
	if !choice.Valid() {
		metrics.VoteCast(entities.VoteChoiceInvalid, "rejected")
		return VoteResult{}, domainerrors.ErrInvalidVote
	}

	now := resolveNow(uc.Clock)
	evaluate := uc.Consensus.For(voterID, now, resolvedEventDecorator(ctx, uc.IDGen, "quorum", logger))
	outcome, err := uc.Reports.RecordVote(ctx, entities.Vote{
		ReportID:  reportID,
		VoterID:   voterID,
		Choice:    choice,
		CreatedAt: now,
	}, evaluate)
	if err != nil {
		metrics.VoteCast(choice, voteFailureOutcome(err))
		logger.Warn("vote rejected",
			"event", "moderation_vote_rejected",
			"module", "moderation-safety/report-consensus-service",
			"layer", "application",
			"report_id", reportID,
			"voter_id", voterID,
			"choice", string(choice),
			"error", err.Error(),
		)
		return VoteResult{}, err
	}

	metrics.VoteCast(choice, "accepted")
	logger.Info("vote recorded",
		"event", "moderation_vote_recorded",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"report_id", reportID,
		"voter_id", voterID,
		"choice", string(choice),
		"votes_confirm", outcome.Report.VotesConfirm,
		"votes_dismiss", outcome.Report.VotesDismiss,
		"tipped", outcome.Tipped,
	)

	result := VoteResult{Report: outcome.Report, Tipped: outcome.Tipped}
	if !outcome.Tipped {
		return result, nil
	}
	metrics.ReportResolved(outcome.Report.Status, "quorum")
	resolved := uc.Executor.Execute(ctx, resolution.Request{
		TargetType:         outcome.Report.TargetType,
		TargetID:           outcome.Report.TargetID,
		ActorID:            voterID,
		Reason:             outcome.Report.Reason,
		TriggeringReportID: outcome.Report.ReportID,
	})
	result.Resolution = &resolved
	return result, nil
}

func voteFailureOutcome(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrDuplicateVote):
		return "duplicate"
	case errors.Is(err, domainerrors.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, domainerrors.ErrReportNotFound):
		return "not_found"
	default:
		return "error"
	}
}
