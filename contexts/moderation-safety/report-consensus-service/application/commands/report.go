package commands

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/consensus"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/resolution"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

const DefaultMinReasonLength = 10

// FileReportCommand is the write-model input for opening a report.
type FileReportCommand struct {
	Reporter   entities.Participant
	TargetType string
	TargetID   string
	Reason     string
}

// ReportResult carries the stored report and, when the reporter's own vote
// already met quorum, the outcome of the resolution side effects.
type ReportResult struct {
	Report     entities.Report
	Resolution *resolution.Result
}

// ReportUseCase opens reports. The reporter's confirm vote is written in the
// same unit as the report so the tally and the ledger never disagree.
type ReportUseCase struct {
	Reports         ports.ReportRepository
	Consensus       consensus.Evaluator
	Executor        resolution.Executor
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	MinReasonLength int
	Metrics         ports.Metrics
	Logger          *slog.Logger
}

func (uc ReportUseCase) FileReport(ctx context.Context, cmd FileReportCommand) (ReportResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	reporterID := strings.TrimSpace(cmd.Reporter.ID)
	targetID := strings.TrimSpace(cmd.TargetID)
	reason := strings.TrimSpace(cmd.Reason)

	if reporterID == "" {
		return ReportResult{}, domainerrors.ErrUnauthenticated
	}
	if !cmd.Reporter.CanMutate() {
		logger.Warn("banned participant attempted to file a report",
			"event", "moderation_report_create_banned",
			"module", "moderation-safety/report-consensus-service",
			"layer", "application",
			"reporter_id", reporterID,
		)
		return ReportResult{}, domainerrors.ErrParticipantBanned
	}

	targetType, ok := entities.ParseTargetType(cmd.TargetType)
	if !ok || targetID == "" {
		logger.Warn("report create validation failed",
			"event", "moderation_report_create_validation_failed",
			"module", "moderation-safety/report-consensus-service",
			"layer", "application",
			"reporter_id", reporterID,
			"target_type", strings.TrimSpace(cmd.TargetType),
			"target_id", targetID,
		)
		return ReportResult{}, domainerrors.ErrInvalidTarget
	}
	if utf8.RuneCountInString(reason) < uc.minReasonLength() {
		return ReportResult{}, domainerrors.ErrReasonTooShort
	}
	if targetType == entities.TargetTypeAgent && targetID == reporterID {
		return ReportResult{}, domainerrors.ErrSelfReport
	}

	reportID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ReportResult{}, err
	}
	now := resolveNow(uc.Clock)
	report := entities.Report{
		ReportID:     reportID,
		ReporterID:   reporterID,
		TargetType:   targetType,
		TargetID:     targetID,
		Reason:       reason,
		Status:       entities.ReportStatusPending,
		VotesConfirm: 1,
		CreatedAt:    now,
	}
	seed := entities.Vote{
		ReportID:  reportID,
		VoterID:   reporterID,
		Choice:    entities.VoteChoiceConfirm,
		CreatedAt: now,
	}

	evaluate := uc.Consensus.For(reporterID, now, resolvedEventDecorator(ctx, uc.IDGen, "quorum", logger))
	outcome, err := uc.Reports.CreateReport(ctx, report, seed, evaluate)
	if err != nil {
		logger.Warn("report create failed",
			"event", "moderation_report_create_failed",
			"module", "moderation-safety/report-consensus-service",
			"layer", "application",
			"reporter_id", reporterID,
			"target_type", string(targetType),
			"target_id", targetID,
			"error", err.Error(),
		)
		return ReportResult{}, err
	}

	metrics := application.ResolveMetrics(uc.Metrics)
	metrics.ReportFiled(targetType)
	logger.Info("report filed",
		"event", "moderation_report_filed",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"report_id", outcome.Report.ReportID,
		"reporter_id", reporterID,
		"target_type", string(targetType),
		"target_id", targetID,
		"status", string(outcome.Report.Status),
	)

	result := ReportResult{Report: outcome.Report}
	if outcome.Tipped {
		metrics.ReportResolved(outcome.Report.Status, "quorum")
		resolved := uc.Executor.Execute(ctx, resolution.Request{
			TargetType:         targetType,
			TargetID:           targetID,
			ActorID:            reporterID,
			Reason:             reason,
			TriggeringReportID: outcome.Report.ReportID,
		})
		result.Resolution = &resolved
	}
	return result, nil
}

func (uc ReportUseCase) minReasonLength() int {
	if uc.MinReasonLength <= 0 {
		return DefaultMinReasonLength
	}
	return uc.MinReasonLength
}
