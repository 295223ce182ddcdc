// Package consensus decides when a report's confirm tally has reached quorum.
//
// The evaluator is pure: it never touches storage. Repositories call it while
// holding the report's write lock, right after the vote counter moved, so the
// pending -> confirmed flip is observed by exactly one writer.
package consensus

import (
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

const DefaultThreshold = 3

type Evaluator struct {
	Threshold int
}

func (e Evaluator) ResolvedThreshold() int {
	if e.Threshold <= 0 {
		return DefaultThreshold
	}
	return e.Threshold
}

// Evaluate returns the confirmed transition when report has reached quorum
// and is still pending. Dismiss votes never close a report on their own.
func (e Evaluator) Evaluate(report entities.Report, voterID string, now time.Time) (ports.Transition, bool) {
	if report.Status != entities.ReportStatusPending {
		return ports.Transition{}, false
	}
	if report.VotesConfirm < e.ResolvedThreshold() {
		return ports.Transition{}, false
	}
	return ports.Transition{
		Status:     entities.ReportStatusConfirmed,
		ResolvedBy: voterID,
		ResolvedAt: now.UTC(),
	}, true
}

// For binds the evaluator to one vote so it can be handed to a repository.
// decorate, when non-nil, may attach an outbox event to the transition.
func (e Evaluator) For(
	voterID string,
	now time.Time,
	decorate func(entities.Report, ports.Transition) ports.Transition,
) ports.Evaluator {
	return func(report entities.Report) (ports.Transition, bool) {
		transition, ok := e.Evaluate(report, voterID, now)
		if !ok {
			return ports.Transition{}, false
		}
		if decorate != nil {
			transition = decorate(report, transition)
		}
		return transition, true
	}
}
