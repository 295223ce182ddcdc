package commands

import (
	"context"
	"log/slog"
	"time"

	application "tribunal/contexts/moderation-safety/report-consensus-service/application"
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

// resolvedEventDecorator attaches a report_resolved outbox event to a
// transition so the repository persists it with the status flip. A failure to
// build the event is logged and the transition proceeds without it.
func resolvedEventDecorator(
	ctx context.Context,
	idGen ports.IDGenerator,
	via string,
	logger *slog.Logger,
) func(entities.Report, ports.Transition) ports.Transition {
	return func(report entities.Report, transition ports.Transition) ports.Transition {
		event, err := newResolvedEvent(ctx, idGen, report, transition, via)
		if err != nil {
			application.ResolveLogger(logger).Error("report resolved event build failed",
				"event", "moderation_report_resolved_event_failed",
				"module", "moderation-safety/report-consensus-service",
				"layer", "application",
				"report_id", report.ReportID,
				"error", err.Error(),
			)
			return transition
		}
		transition.Event = &event
		return transition
	}
}

func newResolvedEvent(
	ctx context.Context,
	idGen ports.IDGenerator,
	report entities.Report,
	transition ports.Transition,
	via string,
) (ports.EventEnvelope, error) {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return application.NewEnvelope(eventID, application.EventReportResolved, "report_id", report.ReportID, transition.ResolvedAt, map[string]any{
		"report_id":     report.ReportID,
		"status":        string(transition.Status),
		"target_type":   string(report.TargetType),
		"target_id":     report.TargetID,
		"resolved_by":   transition.ResolvedBy,
		"votes_confirm": report.VotesConfirm,
		"votes_dismiss": report.VotesDismiss,
		"via":           via,
		"occurred_at":   transition.ResolvedAt.UTC().Format(time.RFC3339),
	})
}

func resolveNow(clock ports.Clock) time.Time {
	if clock != nil {
		return clock.Now().UTC()
	}
	return time.Now().UTC()
}
