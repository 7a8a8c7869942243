// Package commands implements the moklog subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/config"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/notify"
	"git.home.luguber.info/inful/moklog/internal/publish"
	"git.home.luguber.info/inful/moklog/internal/store"
	"git.home.luguber.info/inful/moklog/internal/version"
)

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the command tree and its global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"moklog.yaml" env:"MOKLOG_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Build the site once"`
	Watch  WatchCmd  `cmd:"" help:"Build, then rebuild whenever content or theme files change"`
	Daemon DaemonCmd `cmd:"" help:"Periodically pull the content repository and rebuild, serving metrics"`
	Init   InitCmd   `cmd:"" help:"Write a default configuration file"`
	New    NewCmd    `cmd:"" help:"Create a new content document"`
	Status StatusCmd `cmd:"" help:"Show recently committed builds"`
}

// AfterApply installs the default logger before any command runs.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(os.Stderr, "", "text", c.Verbose))
	return nil
}

// loadConfig reads the configuration and reinstalls the logger with its settings.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = newLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, root.Verbose)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level, verbose)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pipeline is the wired build stack shared by build, watch and daemon.
type pipeline struct {
	session   *build.Session
	runner    *build.Runner
	store     store.Store
	optimizer *assets.Optimizer
	notifier  *notify.NATS
	logger    *slog.Logger
}

func newPipeline(cfg *config.Config, rec metrics.Recorder, logger *slog.Logger) (*pipeline, error) {
	bcfg, err := build.FromConfig(cfg, version.Version)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	p := &pipeline{store: st, logger: logger}

	p.optimizer = assets.NewOptimizer(assets.WithIncludePaths(cfg.Theme.Dir))
	bcfg.Optimizer = p.optimizer

	p.session = build.NewSession(bcfg, st).
		WithPublisher(publish.NewDir(cfg.Output.Dir, cfg.Output.Clean, logger)).
		WithRecorder(rec).
		WithLogger(logger)

	if cfg.Notify.NATSURL != "" {
		n, nerr := notify.Connect(cfg.Notify)
		if nerr != nil {
			// Builds still commit and publish without the notifier.
			logger.Warn("Notifications disabled", logfields.Error(nerr))
		} else {
			p.notifier = n
			p.session.WithNotifier(n)
		}
	}

	p.runner = build.NewRunner(p.session).WithRecorder(rec).WithLogger(logger)
	return p, nil
}

func (p *pipeline) Close() {
	if p.notifier != nil {
		_ = p.notifier.Close()
	}
	if err := p.optimizer.Close(); err != nil {
		p.logger.Warn("Failed to stop asset optimizer", logfields.Error(err))
	}
	if err := p.store.Close(); err != nil {
		p.logger.Warn("Failed to close store", logfields.Error(err))
	}
}

// logReport prints a one-line summary of a finished build.
func logReport(logger *slog.Logger, r *build.Report) {
	if r == nil {
		return
	}
	logger.Info("Build finished",
		logfields.BuildID(r.ID),
		slog.String("outcome", string(r.Outcome())),
		slog.Int("added", len(r.Diff.Added)),
		slog.Int("removed", len(r.Diff.Removed)),
		slog.Int("unchanged", r.Diff.Unchanged),
		slog.Int("skipped", len(r.Skipped)),
		logfields.DurationMS(float64(r.Duration.Milliseconds())))
	for _, s := range r.Skipped {
		logger.Warn("Skipped", logfields.Path(s.Path), logfields.Reason(s.Reason), logfields.Error(s.Err))
	}
}
