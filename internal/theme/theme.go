// Package theme loads a theme bundle: metadata, templates, shortcodes,
// script hooks and static assets.
package theme

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/scripting"
)

// Bundle directories.
const (
	TemplatesDir  = "templates"
	ShortcodesDir = "shortcodes"
	FiltersDir    = "filters"
	FunctionsDir  = "functions"
	TestersDir    = "testers"
)

// AssetDirs are ingested through the asset store as theme/<dir>/<path>.
var AssetDirs = []string{"static", "stylesheets", "scripts"}

const (
	templateExt = ".html"
	scriptExt   = ".expr"
	// ShortcodePrefix namespaces shortcode templates inside the template set.
	ShortcodePrefix = "shortcodes/"
)

// Options configures Load.
type Options struct {
	IgnoreFiles []string
	Location    *time.Location // for the date helper
	Logger      *slog.Logger
	Workers     int // asset preparation pool size; GOMAXPROCS when unset
}

// Theme is a loaded bundle. It is immutable and safe for concurrent use.
type Theme struct {
	Dir     string
	Meta    Metadata
	Version *semver.Version

	set      *template.Template
	hooks    *scripting.Registry
	store    *assets.Store
	location *time.Location
	assets   int
	skipped  []content.Skip
}

// Load reads a theme bundle. Metadata, script and template errors are fatal;
// unreadable assets are logged and skipped.
func Load(ctx context.Context, dir string, store *assets.Store, opts Options) (*Theme, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meta, version, err := readMetadata(dir)
	if err != nil {
		return nil, err
	}

	t := &Theme{
		Dir:      dir,
		Meta:     meta,
		Version:  version,
		hooks:    scripting.NewRegistry(),
		store:    store,
		location: opts.Location,
	}
	rules, err := content.NewIgnoreRules(opts.IgnoreFiles).Enter(dir, nil)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read ignore file").
			WithContext("path", dir).
			Build()
	}

	if store != nil {
		for _, sub := range AssetDirs {
			if err := t.ingestAssets(ctx, sub, rules, opts.Workers, logger); err != nil {
				return nil, err
			}
		}
	}

	for _, group := range []struct {
		kind scripting.Kind
		dir  string
	}{
		{scripting.KindFilter, FiltersDir},
		{scripting.KindFunction, FunctionsDir},
		{scripting.KindTester, TestersDir},
	} {
		if err := t.compileScripts(ctx, group.kind, group.dir, rules); err != nil {
			return nil, err
		}
	}

	templates, err := t.collect(ctx, TemplatesDir, templateExt, rules)
	if err != nil {
		return nil, err
	}
	shortcodes, err := t.collect(ctx, ShortcodesDir, templateExt, rules)
	if err != nil {
		return nil, err
	}
	for _, f := range shortcodes {
		if err := t.registerShortcode(strings.TrimSuffix(f.name, templateExt)); err != nil {
			return nil, err
		}
	}

	funcs, err := t.funcMap()
	if err != nil {
		return nil, err
	}
	t.set = template.New("").Funcs(funcs)
	for _, f := range templates {
		if err := t.parse(f.name, f.abs); err != nil {
			return nil, err
		}
	}
	for _, f := range shortcodes {
		if err := t.parse(ShortcodePrefix+strings.TrimSuffix(f.name, templateExt), f.abs); err != nil {
			return nil, err
		}
	}

	logger.Info("Theme loaded",
		slog.String("name", meta.Name),
		slog.String("version", version.String()),
		slog.Int("templates", len(templates)),
		slog.Int("shortcodes", len(shortcodes)),
		slog.Int("hooks", t.hooks.Len()),
		logfields.Count(t.assets))
	return t, nil
}

// Has reports whether a template exists.
func (t *Theme) Has(name string) bool {
	return t.set.Lookup(name) != nil
}

// Templates returns page template names, sorted. Shortcodes are excluded.
func (t *Theme) Templates() []string {
	var names []string
	for _, tpl := range t.set.Templates() {
		name := tpl.Name()
		if name == "" || strings.HasPrefix(name, ShortcodePrefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute renders a template into w.
func (t *Theme) Execute(w io.Writer, name string, data any) error {
	tpl := t.set.Lookup(name)
	if tpl == nil {
		return errors.TemplateError("template not found").WithContext("template", name).Build()
	}
	if err := tpl.Execute(w, data); err != nil {
		return errors.WrapError(err, errors.CategoryTemplate, "template execution failed").
			WithContext("template", name).
			Build()
	}
	return nil
}

// Shortcode expands a content shortcode through the shortcode hooks.
func (t *Theme) Shortcode(name string, args map[string]string) (string, error) {
	kv := make([]any, 0, len(args)*2)
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, args[k])
	}
	out, err := t.callShortcode(name, kv)
	return string(out), err
}

// Hooks exposes the hook registry.
func (t *Theme) Hooks() *scripting.Registry { return t.hooks }

// Assets returns the number of theme assets registered.
func (t *Theme) Assets() int { return t.assets }

// Skipped lists theme assets that could not be registered.
func (t *Theme) Skipped() []content.Skip { return t.skipped }

func (t *Theme) funcMap() (template.FuncMap, error) {
	funcs := t.builtinFuncs()
	hooked, err := t.hookFuncs()
	if err != nil {
		return nil, err
	}
	for name, fn := range hooked {
		if !identifier.MatchString(name) {
			return nil, errors.ThemeError("hook name is not a valid template identifier").
				WithContext("hook", name).
				Build()
		}
		if _, taken := funcs[name]; taken {
			return nil, errors.ThemeError("hook name conflicts with another helper").
				WithContext("hook", name).
				Build()
		}
		funcs[name] = fn
	}
	return funcs, nil
}

func (t *Theme) registerShortcode(name string) error {
	tplName := ShortcodePrefix + name
	hook := scripting.NewBuiltin(scripting.KindShortcode, name, func(in scripting.Inputs) (any, error) {
		data := make(map[string]any, len(in.Args)+1)
		for k, v := range in.Args {
			data[k] = v
		}
		data["times"] = in.Times

		var buf bytes.Buffer
		if err := t.Execute(&buf, tplName, data); err != nil {
			return nil, err
		}
		return template.HTML(buf.String()), nil //nolint:gosec // output of an html/template
	})
	if err := t.hooks.Register(hook); err != nil {
		return errors.WrapError(err, errors.CategoryTheme, "shortcode registration failed").
			WithContext("hook", name).
			Build()
	}
	return nil
}

func (t *Theme) compileScripts(ctx context.Context, kind scripting.Kind, sub string, rules *content.IgnoreRules) error {
	files, err := t.collect(ctx, sub, scriptExt, rules)
	if err != nil {
		return err
	}
	for _, f := range files {
		src, err := os.ReadFile(f.abs)
		if err != nil {
			return errors.WrapError(err, errors.CategoryTheme, "script not readable").
				WithContext("path", f.abs).
				Build()
		}
		name := strings.TrimSuffix(f.name, scriptExt)
		script, err := scripting.Compile(kind, name, string(src))
		if err != nil {
			return errors.WrapError(err, errors.CategoryScript, "script compilation failed").
				Fatal().
				WithContext("path", f.abs).
				WithContext("hook", name).
				Build()
		}
		if err := t.hooks.Register(script); err != nil {
			return errors.WrapError(err, errors.CategoryTheme, "script registration failed").
				WithContext("path", f.abs).
				Build()
		}
	}
	return nil
}

func (t *Theme) parse(name, abs string) error {
	src, err := os.ReadFile(abs)
	if err != nil {
		return errors.WrapError(err, errors.CategoryTheme, "template not readable").
			WithContext("path", abs).
			Build()
	}
	if _, err := t.set.New(name).Parse(string(src)); err != nil {
		return errors.WrapError(err, errors.CategoryTemplate, "template parse failed").
			Fatal().
			WithContext("path", abs).
			WithContext("template", name).
			Build()
	}
	return nil
}

// ingestAssets reads, optimizes and hashes a bundle directory on a bounded
// pool, then adds the results to the store in lexical order.
func (t *Theme) ingestAssets(ctx context.Context, sub string, rules *content.IgnoreRules, workers int, logger *slog.Logger) error {
	files, err := t.collect(ctx, sub, "", rules)
	if err != nil || len(files) == 0 {
		return err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	prepared := make([]*assets.Prepared, len(files))
	failures := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(f.abs)
			if err != nil {
				failures[i] = err
				return nil
			}
			prepared[i], failures[i] = t.store.Prepare(path.Join("theme", sub, f.name), data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, f := range files {
		logical := path.Join("theme", sub, f.name)
		switch {
		case failures[i] != nil:
			logger.Warn("Skipping theme asset", logfields.Asset(logical), logfields.Error(failures[i]))
			t.skipped = append(t.skipped, content.Skip{Path: logical, Reason: "asset not registered", Err: failures[i]})
		case prepared[i] == nil:
			logger.Debug("Empty theme asset skipped", logfields.Asset(logical))
		default:
			t.store.Add(prepared[i])
			t.assets++
		}
	}
	return nil
}

type bundleFile struct {
	name string // slash path under the bundle subdirectory
	abs  string
}

// collect lists files under dir/sub in lexical order, keeping only those
// ending in ext when ext is set. A missing directory yields no files.
func (t *Theme) collect(ctx context.Context, sub, ext string, rules *content.IgnoreRules) ([]bundleFile, error) {
	root := filepath.Join(t.Dir, sub)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var out []bundleFile
	var walk func(abs string, segments []string, rules *content.IgnoreRules) error
	walk = func(abs string, segments []string, rules *content.IgnoreRules) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rules, err := rules.Enter(abs, append([]string{sub}, segments...))
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to read ignore file").
				WithContext("path", abs).
				Build()
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "theme directory not readable").
				WithContext("path", abs).
				Build()
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			child := append(append([]string(nil), segments...), e.Name())
			if rules.Ignored(append([]string{sub}, child...), e.IsDir()) {
				continue
			}
			if e.IsDir() {
				if err := walk(filepath.Join(abs, e.Name()), child, rules); err != nil {
					return err
				}
				continue
			}
			if ext != "" && path.Ext(e.Name()) != ext {
				continue
			}
			out = append(out, bundleFile{name: path.Join(child...), abs: filepath.Join(abs, e.Name())})
		}
		return nil
	}
	if err := walk(root, nil, rules); err != nil {
		return nil, err
	}
	return out, nil
}
