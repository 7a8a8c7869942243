package build

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/observability"
)

// Builder executes one build.
type Builder interface {
	Build(ctx context.Context) (*Report, error)
}

// call is one scheduled build and everyone waiting for it.
type call struct {
	ctx     context.Context
	done    chan struct{}
	waiters int
	report  *Report
	err     error
}

// Runner admits build requests: one build runs at a time and at most one
// more is pending. Requests arriving while a build is pending join it and
// receive its report with Coalesced set.
//
// Builds run detached from the requester's cancellation; a requester whose
// context ends stops waiting but the build still completes.
type Runner struct {
	builder  Builder
	recorder metrics.Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	pending *call
}

// NewRunner wraps builder.
func NewRunner(builder Builder) *Runner {
	return &Runner{
		builder:  builder,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithRecorder injects a metrics recorder.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	if l != nil {
		r.logger = l
	}
	return r
}

// Build requests a build and waits for its report.
func (r *Runner) Build(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	c := r.pending
	coalesced := c != nil
	switch {
	case coalesced:
		c.waiters++
	case r.running:
		c = r.newCall(ctx)
		r.pending = c
	default:
		c = r.newCall(ctx)
		r.running = true
		go r.drain(c)
	}
	r.mu.Unlock()

	if coalesced {
		r.recorder.IncCoalescedBuild()
		observability.DebugContext(ctx, r.logger, "Build request joined pending build")
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if c.report == nil || !coalesced {
		return c.report, c.err
	}
	shared := *c.report
	shared.Coalesced = true
	return &shared, c.err
}

// Busy reports whether a build is running or pending.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) newCall(ctx context.Context) *call {
	return &call{
		ctx:     context.WithoutCancel(ctx),
		done:    make(chan struct{}),
		waiters: 1,
	}
}

// drain runs c, then every build that became pending meanwhile.
func (r *Runner) drain(c *call) {
	for c != nil {
		c.report, c.err = r.builder.Build(c.ctx)
		if c.err != nil {
			observability.DebugContext(c.ctx, r.logger, "Requested build failed",
				logfields.Count(c.waiters), logfields.Error(c.err))
		}
		close(c.done)

		r.mu.Lock()
		c = r.pending
		r.pending = nil
		if c == nil {
			r.running = false
		}
		r.mu.Unlock()
	}
}
