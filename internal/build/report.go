package build

import (
	"time"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/metrics"
)

// Report summarizes one build session.
type Report struct {
	ID        string
	Trigger   string
	Started   time.Time
	Duration  time.Duration
	Diff      Diff
	Skipped   []content.Skip
	Documents int // nodes rendered
	Outputs   int // pages and redirects
	Feeds     int
	Assets    int
	Committed bool
	Coalesced bool // the caller joined a build requested by someone else
}

// Outcome classifies the finished build for metrics.
func (r *Report) Outcome() metrics.BuildOutcomeLabel {
	switch {
	case !r.Committed:
		return metrics.BuildOutcomeFailed
	case len(r.Skipped) > 0:
		return metrics.BuildOutcomeWarning
	default:
		return metrics.BuildOutcomeSuccess
	}
}
