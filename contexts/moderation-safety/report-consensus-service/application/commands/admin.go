package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/resolution"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

type AdminDeleteCommand struct {
	Actor      entities.Participant
	TargetType string
	TargetID   string
	Reason     string
}

type AdminBanCommand struct {
	Actor   entities.Participant
	AgentID string
	Reason  string
}

type AdminUnbanCommand struct {
	Actor   entities.Participant
	AgentID string
}

type AdminVerdictCommand struct {
	Actor    entities.Participant
	ReportID string
	Outcome  string
	Reason   string
}

type AdminBanResult struct {
	Ban        entities.BannedAgent
	Resolution resolution.Result
}

type AdminVerdictResult struct {
	Report     entities.Report
	Resolution *resolution.Result
}

// AdminUseCase is the override path. Capability is checked once per call at
// entry; the executor below it never re-checks.
type AdminUseCase struct {
	Reports  ports.ReportRepository
	Bans     ports.BanRepository
	Agents   ports.ContentStore
	Executor resolution.Executor
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  ports.Metrics
	Logger   *slog.Logger
}

// AdminDelete removes the target and closes every pending report against it.
// Deleting a target that is already gone succeeds with Removed unset.
func (uc AdminUseCase) AdminDelete(ctx context.Context, cmd AdminDeleteCommand) (resolution.Result, error) {
	if err := uc.authorize(cmd.Actor, "admin_delete"); err != nil {
		return resolution.Result{}, err
	}
	targetType, ok := entities.ParseTargetType(cmd.TargetType)
	targetID := strings.TrimSpace(cmd.TargetID)
	if !ok || targetID == "" {
		return resolution.Result{}, domainerrors.ErrInvalidTarget
	}
	if targetType == entities.TargetTypeAgent {
		if err := uc.requireAgent(ctx, targetID); err != nil {
			return resolution.Result{}, err
		}
	}

	result := uc.Executor.Execute(ctx, resolution.Request{
		TargetType: targetType,
		TargetID:   targetID,
		ActorID:    strings.TrimSpace(cmd.Actor.ID),
		Reason:     strings.TrimSpace(cmd.Reason),
		Steps:      resolution.DeleteSteps(),
	})
	application.ResolveLogger(uc.Logger).Info("admin delete applied",
		"event", "moderation_admin_delete_applied",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
		"target_type", string(targetType),
		"target_id", targetID,
		"removed", result.Removed,
		"closed_reports", result.ClosedReports,
	)
	return result, nil
}

// AdminBan upserts the ban record and announces it. Banning an agent twice
// refreshes reason, actor and timestamp.
func (uc AdminUseCase) AdminBan(ctx context.Context, cmd AdminBanCommand) (AdminBanResult, error) {
	if err := uc.authorize(cmd.Actor, "admin_ban"); err != nil {
		return AdminBanResult{}, err
	}
	actorID := strings.TrimSpace(cmd.Actor.ID)
	agentID := strings.TrimSpace(cmd.AgentID)
	if agentID == "" {
		return AdminBanResult{}, domainerrors.ErrInvalidRequest
	}
	if agentID == actorID {
		return AdminBanResult{}, domainerrors.ErrInvalidRequest
	}
	if err := uc.requireAgent(ctx, agentID); err != nil {
		return AdminBanResult{}, err
	}

	now := resolveNow(uc.Clock)
	reason := strings.TrimSpace(cmd.Reason)
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return AdminBanResult{}, err
	}
	event, err := application.NewEnvelope(eventID, application.EventAgentBanned, "agent_id", agentID, now, map[string]any{
		"agent_id":  agentID,
		"reason":    reason,
		"banned_by": actorID,
		"banned_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return AdminBanResult{}, err
	}
	ban, err := uc.Bans.UpsertBan(ctx, entities.BannedAgent{
		AgentID:  agentID,
		Reason:   reason,
		BannedBy: actorID,
		BannedAt: now,
	}, &event)
	if err != nil {
		return AdminBanResult{}, err
	}

	announced := uc.Executor.AnnounceBan(ctx, agentID, actorID, reason)
	application.ResolveLogger(uc.Logger).Info("agent banned",
		"event", "moderation_agent_banned",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"actor_id", actorID,
		"agent_id", agentID,
		"announced", announced.Announced,
	)
	return AdminBanResult{Ban: ban, Resolution: announced}, nil
}

func (uc AdminUseCase) AdminUnban(ctx context.Context, cmd AdminUnbanCommand) error {
	if err := uc.authorize(cmd.Actor, "admin_unban"); err != nil {
		return err
	}
	agentID := strings.TrimSpace(cmd.AgentID)
	if agentID == "" {
		return domainerrors.ErrInvalidRequest
	}
	if err := uc.Bans.DeleteBan(ctx, agentID); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("agent unbanned",
		"event", "moderation_agent_unbanned",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"actor_id", strings.TrimSpace(cmd.Actor.ID),
		"agent_id", agentID,
	)
	return nil
}

// AdminVerdict closes a pending report without counting votes. A confirmed
// verdict carries the full resolution; a dismissed one only closes the report.
func (uc AdminUseCase) AdminVerdict(ctx context.Context, cmd AdminVerdictCommand) (AdminVerdictResult, error) {
	if err := uc.authorize(cmd.Actor, "admin_verdict"); err != nil {
		return AdminVerdictResult{}, err
	}
	reportID := strings.TrimSpace(cmd.ReportID)
	if reportID == "" {
		return AdminVerdictResult{}, domainerrors.ErrInvalidRequest
	}
	status := entities.ReportStatus(strings.ToLower(strings.TrimSpace(cmd.Outcome)))
	if !status.IsTerminal() {
		return AdminVerdictResult{}, domainerrors.ErrInvalidOutcome
	}

	logger := application.ResolveLogger(uc.Logger)
	actorID := strings.TrimSpace(cmd.Actor.ID)
	current, err := uc.Reports.GetReport(ctx, reportID)
	if err != nil {
		return AdminVerdictResult{}, err
	}
	if current.Status.IsTerminal() {
		return AdminVerdictResult{}, domainerrors.ErrAlreadyResolved
	}

	transition := ports.Transition{
		Status:     status,
		ResolvedBy: actorID,
		ResolvedAt: resolveNow(uc.Clock),
	}
	transition = resolvedEventDecorator(ctx, uc.IDGen, "verdict", logger)(current, transition)
	report, err := uc.Reports.ApplyVerdict(ctx, reportID, transition)
	if err != nil {
		return AdminVerdictResult{}, err
	}
	application.ResolveMetrics(uc.Metrics).ReportResolved(report.Status, "verdict")
	logger.Info("admin verdict applied",
		"event", "moderation_admin_verdict_applied",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"actor_id", actorID,
		"report_id", reportID,
		"status", string(report.Status),
	)

	result := AdminVerdictResult{Report: report}
	if report.Status != entities.ReportStatusConfirmed {
		return result, nil
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = report.Reason
	}
	resolved := uc.Executor.Execute(ctx, resolution.Request{
		TargetType:         report.TargetType,
		TargetID:           report.TargetID,
		ActorID:            actorID,
		Reason:             reason,
		TriggeringReportID: report.ReportID,
	})
	result.Resolution = &resolved
	return result, nil
}

func (uc AdminUseCase) authorize(actor entities.Participant, operation string) error {
	if strings.TrimSpace(actor.ID) == "" {
		return domainerrors.ErrUnauthenticated
	}
	if actor.CanModerate() {
		return nil
	}
	application.ResolveLogger(uc.Logger).Warn("override path denied",
		"event", "moderation_admin_forbidden",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"actor_id", strings.TrimSpace(actor.ID),
		"operation", operation,
	)
	return domainerrors.ErrForbidden
}

func (uc AdminUseCase) requireAgent(ctx context.Context, agentID string) error {
	if uc.Agents == nil {
		return nil
	}
	exists, err := uc.Agents.Exists(ctx, agentID)
	if err != nil {
		return err
	}
	if !exists {
		return domainerrors.ErrAgentNotFound
	}
	return nil
}
