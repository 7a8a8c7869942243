// Package schedule periodically pulls the content repository and rebuilds
// when it changed.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/observability"
	"git.home.luguber.info/inful/moklog/internal/source"
)

// TriggerName is recorded on builds started by the scheduler.
const TriggerName = "schedule"

// Puller refreshes the content checkout. source.Repo satisfies it.
type Puller interface {
	Pull(ctx context.Context) (source.Result, error)
}

// Builder runs one build. build.Runner satisfies it.
type Builder interface {
	Build(ctx context.Context) (*build.Report, error)
}

// Scheduler wraps a gocron scheduler running the pull-and-build job.
type Scheduler struct {
	scheduler gocron.Scheduler
	puller    Puller
	builder   Builder
	logger    *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New creates a scheduler. puller may be nil, in which case every tick rebuilds.
func New(puller Puller, builder Builder) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, puller: puller, builder: builder, logger: slog.Default(), ctx: context.Background()}, nil
}

// WithLogger replaces the logger.
func (s *Scheduler) WithLogger(l *slog.Logger) *Scheduler {
	if l != nil {
		s.logger = l
	}
	return s
}

// Every schedules the pull-and-build job at a fixed interval and returns its ID.
// A tick that is still running when the next one is due delays that one.
func (s *Scheduler) Every(interval time.Duration) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithName("pull-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic pull job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running scheduled jobs. Jobs use ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running job.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("Scheduled build failed", logfields.Error(err))
	}
}

// Tick pulls and, when the checkout changed, builds. It returns the build
// report, or nil when nothing changed.
func (s *Scheduler) Tick(ctx context.Context) (*build.Report, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.puller != nil {
		res, err := s.puller.Pull(ctx)
		if err != nil {
			return nil, err
		}
		if !res.Changed {
			s.logger.Debug("Content unchanged, skipping build", slog.String("commit", res.Commit))
			return nil, nil
		}
	}
	return s.builder.Build(observability.WithTrigger(ctx, TriggerName))
}
