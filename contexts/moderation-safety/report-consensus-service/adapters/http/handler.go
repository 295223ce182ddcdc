package httpadapter

import (
	"context"
	"log/slog"

	"tribunal/contexts/moderation-safety/report-consensus-service/application/commands"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/queries"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/resolution"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	httptransport "tribunal/contexts/moderation-safety/report-consensus-service/transport/http"
)

type Handler struct {
	Reports commands.ReportUseCase
	Votes   commands.VoteUseCase
	Admin   commands.AdminUseCase
	Queries queries.ReportQueryUseCase
	Logger  *slog.Logger
}

func (h Handler) FileReportHandler(
	ctx context.Context,
	actor entities.Participant,
	req httptransport.FileReportRequest,
) (httptransport.FileReportResponse, error) {
	result, err := h.Reports.FileReport(ctx, commands.FileReportCommand{
		Reporter:   actor,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	})
	if err != nil {
		return httptransport.FileReportResponse{}, err
	}
	return httptransport.FileReportResponse{
		Report:     mapReport(result.Report),
		Resolution: mapResolutionPtr(result.Resolution),
	}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	actor entities.Participant,
	reportID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		Voter:    actor,
		ReportID: reportID,
		Choice:   req.Vote,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		ReportID:     result.Report.ReportID,
		VotesConfirm: result.Report.VotesConfirm,
		VotesDismiss: result.Report.VotesDismiss,
		Status:       string(result.Report.Status),
		Resolved:     result.Tipped,
		Resolution:   mapResolutionPtr(result.Resolution),
	}, nil
}

func (h Handler) GetReportHandler(ctx context.Context, reportID string) (httptransport.ReportResponse, error) {
	report, err := h.Queries.GetReport(ctx, reportID)
	if err != nil {
		return httptransport.ReportResponse{}, err
	}
	return mapReport(report), nil
}

func (h Handler) ListReportsHandler(ctx context.Context, status string, limit int) (httptransport.ListReportsResponse, error) {
	reports, err := h.Queries.ListReports(ctx, status, limit)
	if err != nil {
		return httptransport.ListReportsResponse{}, err
	}
	items := make([]httptransport.ReportResponse, 0, len(reports))
	for _, report := range reports {
		items = append(items, mapReport(report))
	}
	return httptransport.ListReportsResponse{Items: items}, nil
}

func (h Handler) ListVotesHandler(ctx context.Context, reportID string) (httptransport.ListVotesResponse, error) {
	votes, err := h.Queries.ListVotes(ctx, reportID)
	if err != nil {
		return httptransport.ListVotesResponse{}, err
	}
	items := make([]httptransport.VoteResponse, 0, len(votes))
	for _, vote := range votes {
		items = append(items, httptransport.VoteResponse{
			VoterID:   vote.VoterID,
			Vote:      string(vote.Choice),
			CreatedAt: vote.CreatedAt,
		})
	}
	return httptransport.ListVotesResponse{ReportID: reportID, Items: items}, nil
}

func (h Handler) AdminDeleteHandler(
	ctx context.Context,
	actor entities.Participant,
	targetType string,
	targetID string,
	req httptransport.AdminDeleteRequest,
) (httptransport.AdminDeleteResponse, error) {
	result, err := h.Admin.AdminDelete(ctx, commands.AdminDeleteCommand{
		Actor:      actor,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     req.Reason,
	})
	if err != nil {
		return httptransport.AdminDeleteResponse{}, err
	}
	parsed, _ := entities.ParseTargetType(targetType)
	return httptransport.AdminDeleteResponse{
		TargetType: string(parsed),
		TargetID:   targetID,
		Deleted:    result.Removed || result.Banned,
		Resolution: mapResolution(result),
	}, nil
}

func (h Handler) AdminBanHandler(
	ctx context.Context,
	actor entities.Participant,
	agentID string,
	req httptransport.AdminBanRequest,
) (httptransport.AdminBanResponse, error) {
	result, err := h.Admin.AdminBan(ctx, commands.AdminBanCommand{
		Actor:   actor,
		AgentID: agentID,
		Reason:  req.Reason,
	})
	if err != nil {
		return httptransport.AdminBanResponse{}, err
	}
	return httptransport.AdminBanResponse{
		Ban:       mapBan(result.Ban),
		Announced: result.Resolution.Announced,
	}, nil
}

func (h Handler) AdminUnbanHandler(ctx context.Context, actor entities.Participant, agentID string) (httptransport.AdminUnbanResponse, error) {
	if err := h.Admin.AdminUnban(ctx, commands.AdminUnbanCommand{Actor: actor, AgentID: agentID}); err != nil {
		return httptransport.AdminUnbanResponse{}, err
	}
	return httptransport.AdminUnbanResponse{AgentID: agentID, Unbanned: true}, nil
}

func (h Handler) ListBansHandler(ctx context.Context, actor entities.Participant, limit int) (httptransport.ListBansResponse, error) {
	bans, err := h.Queries.ListBans(ctx, actor, limit)
	if err != nil {
		return httptransport.ListBansResponse{}, err
	}
	items := make([]httptransport.BanResponse, 0, len(bans))
	for _, ban := range bans {
		items = append(items, mapBan(ban))
	}
	return httptransport.ListBansResponse{Items: items}, nil
}

func (h Handler) AdminVerdictHandler(
	ctx context.Context,
	actor entities.Participant,
	reportID string,
	req httptransport.AdminVerdictRequest,
) (httptransport.AdminVerdictResponse, error) {
	result, err := h.Admin.AdminVerdict(ctx, commands.AdminVerdictCommand{
		Actor:    actor,
		ReportID: reportID,
		Outcome:  req.Outcome,
		Reason:   req.Reason,
	})
	if err != nil {
		return httptransport.AdminVerdictResponse{}, err
	}
	return httptransport.AdminVerdictResponse{
		Report:     mapReport(result.Report),
		Resolution: mapResolutionPtr(result.Resolution),
	}, nil
}

func mapReport(report entities.Report) httptransport.ReportResponse {
	return httptransport.ReportResponse{
		ReportID:     report.ReportID,
		ReporterID:   report.ReporterID,
		TargetType:   string(report.TargetType),
		TargetID:     report.TargetID,
		Reason:       report.Reason,
		Status:       string(report.Status),
		VotesConfirm: report.VotesConfirm,
		VotesDismiss: report.VotesDismiss,
		CreatedAt:    report.CreatedAt,
		ResolvedAt:   report.ResolvedAt,
		ResolvedBy:   report.ResolvedBy,
	}
}

func mapBan(ban entities.BannedAgent) httptransport.BanResponse {
	return httptransport.BanResponse{
		AgentID:  ban.AgentID,
		Reason:   ban.Reason,
		BannedBy: ban.BannedBy,
		BannedAt: ban.BannedAt,
	}
}

func mapResolution(result resolution.Result) httptransport.ResolutionResponse {
	response := httptransport.ResolutionResponse{
		Removed:       result.Removed,
		TargetMissing: result.TargetMissing,
		ClosedReports: result.ClosedReports,
		Banned:        result.Banned,
		Announced:     result.Announced,
	}
	for _, failure := range result.Failures {
		response.FailedSteps = append(response.FailedSteps, failure.Step)
	}
	return response
}

func mapResolutionPtr(result *resolution.Result) *httptransport.ResolutionResponse {
	if result == nil {
		return nil
	}
	response := mapResolution(*result)
	return &response
}
