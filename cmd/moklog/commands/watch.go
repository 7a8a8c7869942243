package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/observability"
	"git.home.luguber.info/inful/moklog/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(cfg, metrics.NoopRecorder{}, g.Logger)
	if err != nil {
		return err
	}
	defer p.Close()

	// A failed first build is reported; the watcher still starts so the
	// next edit can fix it.
	report, err := p.runner.Build(observability.WithTrigger(ctx, "cli"))
	logReport(g.Logger, report)
	if err != nil {
		g.Logger.Error("Initial build failed", logfields.Error(err))
	}

	watcher, err := watch.New(p.runner, watch.Config{QuietWindow: cfg.DebounceDuration()}, cfg.Content.Dir, cfg.Theme.Dir)
	if err != nil {
		return err
	}
	return watcher.WithLogger(g.Logger).Run(ctx)
}
