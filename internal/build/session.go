package build

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/config"
	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/feed"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/markdown"
	"git.home.luguber.info/inful/moklog/internal/metrics"
	"git.home.luguber.info/inful/moklog/internal/observability"
	"git.home.luguber.info/inful/moklog/internal/render"
	"git.home.luguber.info/inful/moklog/internal/theme"
)

// Stage names used for logging and metrics.
const (
	StageTheme   = "theme"
	StageTree    = "tree"
	StageRender  = "render"
	StageFeeds   = "feeds"
	StageDiff    = "diff"
	StageCommit  = "commit"
	StagePublish = "publish"
	StageNotify  = "notify"
)

// Config is the resolved input of a build session.
type Config struct {
	ContentDir    string
	ThemeDir      string
	IgnoreFiles   []string
	ReservedNames []string
	Site          render.Site
	AuthorURI     string
	AssetPrefix   string
	Workers       int
	Location      *time.Location
	Markdown      markdown.Options
	Version       string
	Optimizer     *assets.Optimizer
}

// FromConfig resolves the file configuration into a session configuration.
func FromConfig(cfg *config.Config, version string) (Config, error) {
	tag, err := language.Parse(cfg.Site.DefaultLanguage)
	if err != nil {
		return Config{}, errors.WrapError(err, errors.CategoryConfig, "invalid default language").
			WithContext("default_language", cfg.Site.DefaultLanguage).
			Build()
	}
	return Config{
		ContentDir:    cfg.Content.Dir,
		ThemeDir:      cfg.Theme.Dir,
		IgnoreFiles:   cfg.Content.IgnoreFiles,
		ReservedNames: cfg.Content.ReservedNames,
		Site: render.Site{
			Name:            cfg.Site.Name,
			BaseURL:         cfg.Site.BaseURL,
			Description:     cfg.Site.Description,
			Author:          cfg.Site.Author,
			DefaultLanguage: tag,
			RSS:             cfg.Site.RSS,
		},
		AssetPrefix: cfg.Output.AssetPrefix,
		Workers:     cfg.Build.Workers,
		Location:    cfg.Location(),
		Version:     version,
	}, nil
}

// Session runs builds. Build calls are serialized.
type Session struct {
	cfg       Config
	store     ArtifactStore
	publisher Publisher
	notifier  Notifier
	recorder  metrics.Recorder
	logger    *slog.Logger

	mu sync.Mutex
}

// NewSession creates a session committing to store.
func NewSession(cfg Config, store ArtifactStore) *Session {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AssetPrefix == "" {
		cfg.AssetPrefix = assets.DefaultPrefix
	}
	if cfg.Site.DefaultLanguage.IsRoot() {
		cfg.Site.DefaultLanguage = language.English
	}
	return &Session{
		cfg:      cfg,
		store:    store,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithPublisher sets the publisher run after a successful commit.
func (s *Session) WithPublisher(p Publisher) *Session {
	s.publisher = p
	return s
}

// WithNotifier sets the notifier run after a successful commit.
func (s *Session) WithNotifier(n Notifier) *Session {
	s.notifier = n
	return s
}

// WithRecorder injects a metrics recorder.
func (s *Session) WithRecorder(r metrics.Recorder) *Session {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithLogger sets the logger.
func (s *Session) WithLogger(l *slog.Logger) *Session {
	if l != nil {
		s.logger = l
	}
	return s
}

// Build runs one complete build. Nothing is committed unless every stage up
// to and including the diff succeeded. The returned report is non-nil even
// when err is not.
func (s *Session) Build(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{
		ID:      uuid.NewString(),
		Trigger: observability.GetContext(ctx).Trigger,
		Started: time.Now(),
	}
	ctx = observability.WithBuildID(ctx, report.ID)
	observability.InfoContext(ctx, s.logger, "Build started")

	err := s.run(ctx, report)
	report.Duration = time.Since(report.Started)
	s.recorder.ObserveBuildDuration(report.Duration)

	if err != nil {
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		observability.ErrorContext(ctx, s.logger, "Build failed", logfields.Error(err))
		return report, err
	}
	s.recorder.IncBuildOutcome(report.Outcome())
	observability.InfoContext(ctx, s.logger, "Build committed",
		slog.Int("added", len(report.Diff.Added)),
		slog.Int("removed", len(report.Diff.Removed)),
		slog.Int("unchanged", report.Diff.Unchanged),
		slog.Int("skipped", len(report.Skipped)),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000))
	return report, nil
}

func (s *Session) run(ctx context.Context, report *Report) error {
	storeOpts := []assets.Option{assets.WithPrefix(s.cfg.AssetPrefix)}
	if s.cfg.Optimizer != nil {
		storeOpts = append(storeOpts, assets.WithOptimizer(s.cfg.Optimizer))
	}
	store := assets.NewStore(storeOpts...)

	var th *theme.Theme
	if err := s.stage(ctx, StageTheme, func(ctx context.Context) error {
		var err error
		th, err = theme.Load(ctx, s.cfg.ThemeDir, store, theme.Options{
			IgnoreFiles: s.cfg.IgnoreFiles,
			Location:    s.cfg.Location,
			Logger:      observability.Logger(ctx, s.logger),
			Workers:     s.cfg.Workers,
		})
		if err != nil {
			return err
		}
		report.Skipped = append(report.Skipped, th.Skipped()...)
		return nil
	}); err != nil {
		return err
	}

	var tree *content.Result
	if err := s.stage(ctx, StageTree, func(ctx context.Context) error {
		var err error
		tree, err = content.NewBuilder(s.cfg.ContentDir, store, content.Options{
			IgnoreFiles:     s.cfg.IgnoreFiles,
			ReservedNames:   s.cfg.ReservedNames,
			DefaultLanguage: s.cfg.Site.DefaultLanguage,
			Workers:         s.cfg.Workers,
			Logger:          observability.Logger(ctx, s.logger),
		}).Build(ctx)
		if err != nil {
			return err
		}
		report.Skipped = append(report.Skipped, tree.Skipped...)
		return nil
	}); err != nil {
		return err
	}

	var pages []render.Output
	if err := s.stage(ctx, StageRender, func(ctx context.Context) error {
		renderer := render.New(th, tree, store, s.cfg.Site, render.BuildInfo{
			ID:      report.ID,
			Started: report.Started,
			Trigger: report.Trigger,
			Version: s.cfg.Version,
		}, render.Options{
			Markdown: s.cfg.Markdown,
			Location: s.cfg.Location,
			Logger:   observability.Logger(ctx, s.logger),
		})
		var err error
		pages, err = s.renderAll(ctx, renderer, tree, report)
		return err
	}); err != nil {
		return err
	}

	var feeds []*feed.Feed
	if s.cfg.Site.RSS {
		if err := s.stage(ctx, StageFeeds, func(ctx context.Context) error {
			feeds = s.feeds(ctx, tree, pages, report)
			return nil
		}); err != nil {
			return err
		}
	}

	bundle := newBundle(report, pages, feeds, store)
	report.Outputs = len(bundle.Pages)
	report.Feeds = len(bundle.Feeds)
	report.Assets = len(bundle.Assets)

	if err := s.stage(ctx, StageDiff, func(ctx context.Context) error {
		previous, err := s.store.ListCurrentArtifacts(ctx)
		if err != nil {
			return errors.WrapError(err, errors.CategoryPersistence, "failed to list current artifacts").Build()
		}
		bundle.Diff = ComputeDiff(previous, bundle.Artifacts)
		report.Diff = bundle.Diff
		return nil
	}); err != nil {
		return err
	}

	if err := s.stage(ctx, StageCommit, func(ctx context.Context) error {
		if err := s.store.Commit(ctx, bundle); err != nil {
			return errors.WrapError(err, errors.CategoryPersistence, "failed to commit build").
				WithContext("build_id", report.ID).
				Build()
		}
		report.Committed = true
		return nil
	}); err != nil {
		return err
	}
	s.recorder.ObserveDiff(len(bundle.Diff.Added), len(bundle.Diff.Removed), bundle.Diff.Unchanged)
	for _, kind := range []ArtifactKind{ArtifactPage, ArtifactRedirect, ArtifactFeed, ArtifactAsset} {
		s.recorder.SetArtifacts(string(kind), bundle.Count(kind))
	}

	if s.publisher != nil {
		if err := s.stage(ctx, StagePublish, func(ctx context.Context) error {
			return s.publisher.Publish(ctx, bundle)
		}); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to publish committed build").
				WithContext("build_id", report.ID).
				Build()
		}
	}

	if s.notifier != nil {
		// Notification failures never fail a committed build.
		_ = s.stage(ctx, StageNotify, func(ctx context.Context) error {
			if err := s.notifier.Notify(ctx, report); err != nil {
				observability.WarnContext(ctx, s.logger, "Build notification failed", logfields.Error(err))
				return err
			}
			return nil
		})
	}
	return nil
}

func (s *Session) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx = observability.WithStage(ctx, name)
	err := fn(ctx)
	s.recorder.ObserveStageDuration(name, time.Since(start))
	if err != nil {
		s.recorder.IncStageResult(name, metrics.ResultFatal)
		return err
	}
	s.recorder.IncStageResult(name, metrics.ResultSuccess)
	observability.DebugContext(ctx, s.logger, "Stage complete",
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return nil
}

// renderAll renders every document on the worker pool. A failing document
// is skipped. When two outputs claim one path the first wins, except that a
// page always wins over a redirect.
func (s *Session) renderAll(ctx context.Context, renderer *render.Renderer, tree *content.Result, report *Report) ([]render.Output, error) {
	docs := tree.Tree.Documents()
	results := make([][]render.Output, len(docs))
	failures := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, node := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], failures[i] = renderer.Render(gctx, node)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryBuild, "render interrupted").Build()
	}

	var out []render.Output
	byPath := make(map[string]int)
	for i, node := range docs {
		if err := failures[i]; err != nil {
			s.recorder.IncDocumentResult(metrics.DocumentSkipped)
			observability.WarnContext(ctx, s.logger, "Skipping document", logfields.Node(node.Path), logfields.Error(err))
			report.Skipped = append(report.Skipped, content.Skip{Path: node.Path, Reason: "render failed", Err: err})
			continue
		}
		s.recorder.IncDocumentResult(metrics.DocumentRendered)
		report.Documents++
		for _, o := range results[i] {
			for _, link := range o.Dangling {
				observability.WarnContext(ctx, s.logger, "Dangling link", logfields.Path(o.SourcePath), logfields.URL(link))
				report.Skipped = append(report.Skipped, content.Skip{
					Path:   o.SourcePath,
					Reason: "dangling link",
					Err: errors.ContentError("link target not found").
						Warning().
						WithContext("path", o.SourcePath).
						WithContext("url", link).
						Build(),
				})
			}
			j, taken := byPath[o.Path]
			switch {
			case !taken:
				byPath[o.Path] = len(out)
				out = append(out, o)
			case out[j].Kind == render.OutputRedirect && o.Kind == render.OutputPage:
				report.Skipped = append(report.Skipped, content.Skip{Path: out[j].Path, Reason: "redirect shadowed by page"})
				out[j] = o
			default:
				observability.WarnContext(ctx, s.logger, "Duplicate output path", logfields.Path(o.Path), logfields.Node(o.Node))
				report.Skipped = append(report.Skipped, content.Skip{Path: o.Path, Reason: "duplicate output path"})
			}
		}
	}
	return out, nil
}

// feeds generates one feed per rss-enabled document, listing its indexed
// children in the default language.
func (s *Session) feeds(ctx context.Context, tree *content.Result, pages []render.Output, report *Report) []*feed.Feed {
	lang := s.cfg.Site.DefaultLanguage.String()
	byNode := make(map[string]render.Output)
	for _, o := range pages {
		if o.Kind == render.OutputPage && o.Lang == lang && o.Path == o.Node {
			byNode[o.Node] = o
		}
	}

	site := feed.Site{
		Title:     s.cfg.Site.Name,
		BaseURL:   s.cfg.Site.BaseURL,
		Author:    s.cfg.Site.Author,
		AuthorURI: s.cfg.AuthorURI,
	}

	var out []*feed.Feed
	for _, node := range tree.Tree.Documents() {
		if node.Doc.Meta == nil || !node.Doc.Meta.RSS {
			continue
		}
		owner, ok := byNode[node.Path]
		if !ok {
			continue
		}
		var entries []feed.Entry
		for _, child := range tree.Tree.Children(node.ID) {
			o, ok := byNode[child.Path]
			if !ok || !o.Indexed {
				continue
			}
			entries = append(entries, feed.Entry{
				Title:   o.Title,
				Summary: o.Summary,
				Path:    o.Path,
				Date:    o.Date,
				Tags:    o.Tags,
			})
		}
		f, err := feed.Generate(site, owner.Title, node.Path, entries)
		if err != nil {
			observability.WarnContext(ctx, s.logger, "Skipping feed", logfields.Node(node.Path), logfields.Error(err))
			report.Skipped = append(report.Skipped, content.Skip{Path: feed.PathFor(node.Path), Reason: "feed failed", Err: err})
			continue
		}
		out = append(out, f)
	}
	return out
}
