package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// BuildOutcomeLabel is the final status of a build session.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess BuildOutcomeLabel = "success"
	BuildOutcomeWarning BuildOutcomeLabel = "warning" // committed with skipped documents or assets
	BuildOutcomeFailed  BuildOutcomeLabel = "failed"
)

// DocumentResultLabel is the outcome of rendering one content node.
type DocumentResultLabel string

const (
	DocumentRendered DocumentResultLabel = "rendered"
	DocumentSkipped  DocumentResultLabel = "skipped"
)

// Recorder defines observability hooks for build sessions. Implementations
// may forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncDocumentResult(result DocumentResultLabel)
	ObserveDiff(added, removed, unchanged int)
	SetArtifacts(kind string, n int)
	IncCoalescedBuild()
	ObservePullDuration(d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) IncDocumentResult(DocumentResultLabel)      {}
func (NoopRecorder) ObserveDiff(int, int, int)                  {}
func (NoopRecorder) SetArtifacts(string, int)                   {}
func (NoopRecorder) IncCoalescedBuild()                         {}
func (NoopRecorder) ObservePullDuration(time.Duration, bool)    {}
