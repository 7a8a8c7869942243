package commands

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/observability"
	"git.home.luguber.info/inful/moklog/internal/schedule"
	"git.home.luguber.info/inful/moklog/internal/source"
	"git.home.luguber.info/inful/moklog/internal/watch"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Watch bool `help:"Also rebuild on local file changes"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	p, err := newPipeline(cfg, rec, g.Logger)
	if err != nil {
		return err
	}
	defer p.Close()

	var repo *source.Repo
	if cfg.Source.URL != "" {
		repo = source.New(cfg.Source).WithRecorder(rec).WithLogger(g.Logger)
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = startMetricsServer(cfg.Metrics.Addr, reg, g.Logger)
	}

	if err := initialBuild(ctx, repo, p.runner, g.Logger); err != nil {
		g.Logger.Error("Initial build failed", logfields.Error(err))
	}

	var sched *schedule.Scheduler
	if repo != nil {
		sched, err = schedule.New(repo, p.runner)
		if err != nil {
			return err
		}
		sched.WithLogger(g.Logger)
		if _, err := sched.Every(cfg.IntervalDuration()); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid pull interval").Build()
		}
		sched.Start(ctx)
	} else {
		g.Logger.Info("No source repository configured, periodic pulls disabled")
	}

	if d.Watch {
		watcher, werr := watch.New(p.runner, watch.Config{QuietWindow: cfg.DebounceDuration()}, cfg.Content.Dir, cfg.Theme.Dir)
		if werr != nil {
			return werr
		}
		go func() {
			if err := watcher.WithLogger(g.Logger).Run(ctx); err != nil {
				g.Logger.Error("Watcher stopped", logfields.Error(err))
			}
		}()
	}

	g.Logger.Info("Daemon started, waiting for shutdown signal")
	<-ctx.Done()
	g.Logger.Info("Shutdown signal received, stopping daemon")

	if sched != nil {
		if err := sched.Stop(); err != nil {
			g.Logger.Warn("Failed to stop scheduler", logfields.Error(err))
		}
	}
	if srv != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			g.Logger.Warn("Failed to stop metrics server", logfields.Error(err))
		}
	}
	g.Logger.Info("Daemon stopped")
	return nil
}

// initialBuild pulls when a repository is configured and builds regardless
// of whether the checkout changed.
func initialBuild(ctx context.Context, repo *source.Repo, runner *build.Runner, logger *slog.Logger) error {
	if repo != nil {
		if _, err := repo.Pull(ctx); err != nil {
			return err
		}
	}
	report, err := runner.Build(observability.WithTrigger(ctx, "startup"))
	logReport(logger, report)
	return err
}

func startMetricsServer(addr string, reg *prom.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	return srv
}
