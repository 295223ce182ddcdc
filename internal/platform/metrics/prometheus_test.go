package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRecordLabels(t *testing.T) {
	m := NewPrometheus()
	m.ReportFiled(entities.TargetTypePost)
	m.ReportFiled(entities.TargetTypePost)
	m.VoteCast(entities.VoteChoiceConfirm, "accepted")
	m.ReportResolved(entities.ReportStatusConfirmed, "quorum")
	m.ExecutorStepFailed("announce")
	m.RequestRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reportsFiled.WithLabelValues("post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votesCast.WithLabelValues("confirm", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsClosed.WithLabelValues("confirmed", "quorum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepFailures.WithLabelValues("announce")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsLimited))
}

func TestVoteCastCollapsesUnknownChoices(t *testing.T) {
	m := NewPrometheus()
	for i := 0; i < 500; i++ {
		m.VoteCast(entities.VoteChoice(fmt.Sprintf("junk-%d", i)), "rejected")
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.votesCast))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.votesCast.WithLabelValues("invalid", "rejected")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewPrometheus()
	m.ReportFiled(entities.TargetTypeAgent)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `moderation_reports_filed_total{target_type="agent"} 1`), body)
	assert.False(t, strings.Contains(body, "go_goroutines"), "default collectors must not leak into the private registry")
}
