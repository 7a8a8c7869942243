package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("render", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("render", ResultSuccess)
	pr.IncBuildOutcome(BuildOutcomeSuccess)
	pr.IncDocumentResult(DocumentRendered)
	pr.IncDocumentResult(DocumentRendered)
	pr.IncDocumentResult(DocumentSkipped)
	pr.ObserveDiff(3, 1, 7)
	pr.SetArtifacts("page", 4)
	pr.IncCoalescedBuild()
	pr.ObservePullDuration(time.Second, true)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.documentResults.WithLabelValues("rendered")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.documentResults.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.diffArtifacts.WithLabelValues("added")), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(pr.diffArtifacts.WithLabelValues("unchanged")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.coalesced), 0)
}

func TestNilPrometheusRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveBuildDuration(time.Second)
		pr.IncBuildOutcome(BuildOutcomeFailed)
		pr.ObserveDiff(1, 1, 1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(BuildOutcomeWarning)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `moklog_build_outcomes_total{outcome="warning"} 1`))
}
