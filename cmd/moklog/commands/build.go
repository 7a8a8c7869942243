package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/observability"
	"git.home.luguber.info/inful/moklog/internal/source"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Pull   bool   `help:"Pull the content repository before building"`
	Output string `short:"o" help:"Override output.dir"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if b.Output != "" {
		cfg.Output.Dir = b.Output
	}
	ctx := observability.WithTrigger(context.Background(), "cli")

	if b.Pull {
		res, perr := source.New(cfg.Source).WithLogger(g.Logger).Pull(ctx)
		if perr != nil {
			return perr
		}
		g.Logger.Info("Content checkout ready", slog.String("commit", res.Commit), slog.Bool("changed", res.Changed))
	}

	p, err := newPipeline(cfg, metrics.NoopRecorder{}, g.Logger)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.session.Build(ctx)
	logReport(g.Logger, report)
	if err != nil {
		return err
	}
	fmt.Printf("Built %d pages, %d feeds, %d assets into %s\n", report.Outputs, report.Feeds, report.Assets, cfg.Output.Dir)
	return nil
}
