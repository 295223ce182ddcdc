package metrics

import (
	"net/http"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records moderation counters on its own registry so tests and
// multiple processes in one binary do not collide on the default one.
type Prometheus struct {
	registry *prometheus.Registry

	reportsFiled    *prometheus.CounterVec
	votesCast       *prometheus.CounterVec
	reportsClosed   *prometheus.CounterVec
	stepFailures    *prometheus.CounterVec
	requestsLimited prometheus.Counter
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Prometheus{
		registry: reg,
		reportsFiled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_reports_filed_total",
			Help: "Reports filed, by target type.",
		}, []string{"target_type"}),
		votesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_votes_cast_total",
			Help: "Vote attempts, by choice and outcome.",
		}, []string{"choice", "outcome"}),
		reportsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_reports_resolved_total",
			Help: "Reports moved to a terminal status, by status and path.",
		}, []string{"status", "via"}),
		stepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_executor_step_failures_total",
			Help: "Failed resolution side effects, by step.",
		}, []string{"step"}),
		requestsLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "moderation_http_rate_limited_total",
			Help: "Mutating requests rejected by the per-participant limiter.",
		}),
	}
}

func (p *Prometheus) ReportFiled(targetType entities.TargetType) {
	p.reportsFiled.WithLabelValues(string(targetType)).Inc()
}

func (p *Prometheus) VoteCast(choice entities.VoteChoice, outcome string) {
	if !choice.Valid() {
		choice = entities.VoteChoiceInvalid
	}
	p.votesCast.WithLabelValues(string(choice), outcome).Inc()
}

func (p *Prometheus) ReportResolved(status entities.ReportStatus, via string) {
	p.reportsClosed.WithLabelValues(string(status), via).Inc()
}

func (p *Prometheus) ExecutorStepFailed(step string) {
	p.stepFailures.WithLabelValues(step).Inc()
}

func (p *Prometheus) RequestRateLimited() {
	p.requestsLimited.Inc()
}

func (p *Prometheus) Gatherer() prometheus.Gatherer {
	return p.registry
}

// Handler serves the registry in the text exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
