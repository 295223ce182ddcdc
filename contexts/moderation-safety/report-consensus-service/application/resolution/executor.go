// Package resolution applies the downstream consequences of a terminal
// report: removing the target, closing sibling reports, suspending agents and
// announcing the outcome.
//
// Steps are best-effort and independent. A failing step is logged, counted
// and returned in Result.Failures; it never undoes the steps before it and
// never reverts the report's terminal status. The executor trusts its caller
// for authorization.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

type Step string

const (
	StepRemoveTarget Step = "remove_target"
	StepCloseRelated Step = "close_related_reports"
	StepBanAgent     Step = "ban_agent"
	StepAnnounce     Step = "announce"
)

const (
	DefaultAnnouncerID     = "system"
	DefaultReasonMaxLength = 200
	MaxLabelLength         = 64

	announcementKind = "announcement"
)

// AllSteps is the sequence run when a report is confirmed.
func AllSteps() []Step {
	return []Step{StepRemoveTarget, StepCloseRelated, StepBanAgent, StepAnnounce}
}

// DeleteSteps is the sequence run by an administrative delete.
func DeleteSteps() []Step {
	return []Step{StepRemoveTarget, StepCloseRelated, StepBanAgent}
}

type Request struct {
	TargetType         entities.TargetType
	TargetID           string
	ActorID            string
	Reason             string
	TriggeringReportID string
	Steps              []Step
}

type Result struct {
	Removed       bool
	TargetMissing bool
	ClosedReports int64
	Banned        bool
	Announced     bool
	Failures      []*domainerrors.ExecutorStepError
}

func (r Result) Failed(step Step) bool {
	for _, failure := range r.Failures {
		if failure.Step == string(step) {
			return true
		}
	}
	return false
}

type Executor struct {
	Contents        map[entities.TargetType]ports.ContentStore
	Reports         ports.ReportRepository
	Bans            ports.BanRepository
	Announcements   ports.AnnouncementSink
	Clock           ports.Clock
	AnnouncerID     string
	ReasonMaxLength int
	Metrics         ports.Metrics
	Logger          *slog.Logger
}

func (e Executor) Execute(ctx context.Context, req Request) Result {
	logger := application.ResolveLogger(e.Logger)
	steps := req.Steps
	if len(steps) == 0 {
		steps = AllSteps()
	}

	var result Result
	// The label is read up front because removal may make it unreadable.
	var label string
	if containsStep(steps, StepAnnounce) {
		label = e.label(ctx, req.TargetType, req.TargetID)
	}
	for _, step := range steps {
		var err error
		switch step {
		case StepRemoveTarget:
			err = e.removeTarget(ctx, req, &result)
		case StepCloseRelated:
			err = e.closeRelated(ctx, req, &result)
		case StepBanAgent:
			err = e.banAgent(ctx, req, &result)
		case StepAnnounce:
			err = e.announce(ctx, req, label, &result)
		default:
			err = fmt.Errorf("unknown step %q", step)
		}
		if err == nil {
			continue
		}
		failure := &domainerrors.ExecutorStepError{Step: string(step), Err: err}
		result.Failures = append(result.Failures, failure)
		application.ResolveMetrics(e.Metrics).ExecutorStepFailed(string(step))
		logger.Error("resolution step failed",
			"event", "moderation_resolution_step_failed",
			"module", "moderation-safety/report-consensus-service",
			"layer", "application",
			"step", string(step),
			"report_id", req.TriggeringReportID,
			"target_type", string(req.TargetType),
			"target_id", req.TargetID,
			"actor_id", req.ActorID,
			"error", err.Error(),
		)
	}

	logger.Info("resolution executed",
		"event", "moderation_resolution_executed",
		"module", "moderation-safety/report-consensus-service",
		"layer", "application",
		"report_id", req.TriggeringReportID,
		"target_type", string(req.TargetType),
		"target_id", req.TargetID,
		"actor_id", req.ActorID,
		"removed", result.Removed,
		"target_missing", result.TargetMissing,
		"closed_reports", result.ClosedReports,
		"banned", result.Banned,
		"announced", result.Announced,
		"failed_steps", len(result.Failures),
	)
	return result
}

// removeTarget deletes the reported entity. Agents are suspended by the ban
// step instead of being removed from the directory.
func (e Executor) removeTarget(ctx context.Context, req Request, result *Result) error {
	if req.TargetType == entities.TargetTypeAgent {
		return nil
	}
	store, ok := e.Contents[req.TargetType]
	if !ok || store == nil {
		return fmt.Errorf("no content store for %s", req.TargetType)
	}
	exists, err := store.Exists(ctx, req.TargetID)
	if err != nil {
		return err
	}
	if !exists {
		result.TargetMissing = true
		return nil
	}
	if err := store.Delete(ctx, req.TargetID); err != nil {
		if errors.Is(err, domainerrors.ErrTargetNotFound) {
			result.TargetMissing = true
			return nil
		}
		return err
	}
	result.Removed = true
	return nil
}

func (e Executor) closeRelated(ctx context.Context, req Request, result *Result) error {
	if e.Reports == nil {
		return errors.New("report repository is not configured")
	}
	closed, err := e.Reports.ResolvePendingForTarget(ctx, ports.CascadeInput{
		TargetType:      req.TargetType,
		TargetID:        req.TargetID,
		ExcludeReportID: req.TriggeringReportID,
		ResolvedBy:      req.ActorID,
		ResolvedAt:      e.now(),
	})
	if err != nil {
		return err
	}
	result.ClosedReports = closed
	if closed > 0 {
		application.ResolveMetrics(e.Metrics).ReportResolved(entities.ReportStatusConfirmed, "cascade")
	}
	return nil
}

func (e Executor) banAgent(ctx context.Context, req Request, result *Result) error {
	if req.TargetType != entities.TargetTypeAgent {
		return nil
	}
	if e.Bans == nil {
		return errors.New("ban repository is not configured")
	}
	if _, err := e.Bans.UpsertBan(ctx, entities.BannedAgent{
		AgentID:  req.TargetID,
		Reason:   req.Reason,
		BannedBy: req.ActorID,
		BannedAt: e.now(),
	}, nil); err != nil {
		return err
	}
	result.Banned = true
	return nil
}

func (e Executor) announce(ctx context.Context, req Request, label string, result *Result) error {
	if e.Announcements == nil {
		return errors.New("announcement sink is not configured")
	}
	if err := e.Announcements.Publish(ctx, e.announcerID(), e.Announcement(req.TargetType, label, req.Reason), announcementKind); err != nil {
		return err
	}
	result.Announced = true
	return nil
}

// Announcement renders the public notice for a moderation action.
func (e Executor) Announcement(targetType entities.TargetType, label string, reason string) string {
	reason = truncate(strings.TrimSpace(reason), e.reasonMaxLength())
	if targetType == entities.TargetTypeAgent {
		if reason == "" {
			return fmt.Sprintf("[Moderation] agent %s was banned", label)
		}
		return fmt.Sprintf("[Moderation] agent %s was banned: %s", label, reason)
	}
	if reason == "" {
		return fmt.Sprintf("[Moderation] %s %s was removed", targetType, label)
	}
	return fmt.Sprintf("[Moderation] %s %s was removed: %s", targetType, label, reason)
}

// AnnounceBan publishes the notice for a direct administrative ban.
func (e Executor) AnnounceBan(ctx context.Context, agentID string, actorID string, reason string) Result {
	return e.Execute(ctx, Request{
		TargetType: entities.TargetTypeAgent,
		TargetID:   agentID,
		ActorID:    actorID,
		Reason:     reason,
		Steps:      []Step{StepAnnounce},
	})
}

func (e Executor) label(ctx context.Context, targetType entities.TargetType, targetID string) string {
	fallback := fmt.Sprintf("%q", truncate(targetID, MaxLabelLength))
	store, ok := e.Contents[targetType]
	if !ok || store == nil {
		return fallback
	}
	label, err := store.Label(ctx, targetID)
	if err != nil || strings.TrimSpace(label) == "" {
		return fallback
	}
	return fmt.Sprintf("%q", truncate(strings.TrimSpace(label), MaxLabelLength))
}

func (e Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Executor) announcerID() string {
	if strings.TrimSpace(e.AnnouncerID) == "" {
		return DefaultAnnouncerID
	}
	return strings.TrimSpace(e.AnnouncerID)
}

func (e Executor) reasonMaxLength() int {
	if e.ReasonMaxLength <= 0 {
		return DefaultReasonMaxLength
	}
	return e.ReasonMaxLength
}

func containsStep(steps []Step, want Step) bool {
	for _, step := range steps {
		if step == want {
			return true
		}
	}
	return false
}

func truncate(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max]) + "..."
}
