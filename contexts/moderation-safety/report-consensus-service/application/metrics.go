package application

import (
	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"
)

type noopMetrics struct{}

func (noopMetrics) ReportFiled(entities.TargetType)              {}
func (noopMetrics) VoteCast(entities.VoteChoice, string)         {}
func (noopMetrics) ReportResolved(entities.ReportStatus, string) {}
func (noopMetrics) ExecutorStepFailed(string)                    {}

// ResolveMetrics returns a recorder that drops everything when m is nil.
func ResolveMetrics(m ports.Metrics) ports.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
