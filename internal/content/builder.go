package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/frontmatter"
	"git.home.luguber.info/inful/moklog/internal/logfields"
)

// Skip records a file or node left out of the build and why.
type Skip struct {
	Path   string
	Reason string
	Err    error
}

// Result is the outcome of a tree build.
type Result struct {
	Tree          *Tree
	Categories    map[string]*Category
	Subcategories map[string]*Subcategory
	Skipped       []Skip
	Assets        int // asset files registered from the content tree
}

// Options configures a Builder.
type Options struct {
	IgnoreFiles     []string
	ReservedNames   []string
	DefaultLanguage language.Tag
	Workers         int
	Logger          *slog.Logger
}

// Builder turns a content directory into a pruned, category-resolved tree.
type Builder struct {
	root      string
	store     *assets.Store
	opts      Options
	validator *NameValidator
	logger    *slog.Logger
}

// NewBuilder creates a builder for the content root. Non-document files are
// registered in store.
func NewBuilder(root string, store *assets.Store, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.DefaultLanguage.IsRoot() {
		opts.DefaultLanguage = language.English
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		root:      root,
		store:     store,
		opts:      opts,
		validator: NewNameValidator(opts.ReservedNames...),
		logger:    logger,
	}
}

// walkState is owned by the single walking goroutine.
type walkState struct {
	tree    *Tree
	skipped []Skip
	assets  int
	pending []pendingAsset
}

// pendingAsset is a prepared file held back until its directory is known to
// survive pruning.
type pendingAsset struct {
	node     NodeID
	src      string
	prepared *assets.Prepared
}

func (s *walkState) skip(p, reason string, err error) {
	s.skipped = append(s.skipped, Skip{Path: p, Reason: reason, Err: err})
}

// Build walks the content root. Namespace violations abort with a fatal
// content error; malformed documents and unreadable assets are skipped.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	info, err := os.Stat(b.root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryContent, "content root not readable").
			Fatal().
			WithContext("path", b.root).
			Build()
	}
	if !info.IsDir() {
		return nil, errors.ContentError("content root is not a directory").WithContext("path", b.root).Build()
	}

	state := &walkState{tree: NewTree()}
	if err := b.walk(ctx, state, RootID, nil, NewIgnoreRules(b.opts.IgnoreFiles)); err != nil {
		return nil, err
	}

	for _, n := range state.tree.Prune() {
		if n.Doc != nil {
			b.logger.Warn("Dropped document under orphan directory", logfields.Node(n.Path))
			state.skip(n.Path, "ancestor directory has no document", nil)
			continue
		}
		b.logger.Debug("Pruned orphan node", logfields.Node(n.Path))
	}
	b.addAssets(state)

	categories, subcategories, skipped := resolveCategories(state.tree, b.logger)
	state.skipped = append(state.skipped, skipped...)

	b.logger.Info("Content tree built",
		slog.Int("nodes", state.tree.Len()),
		slog.Int("categories", len(categories)),
		slog.Int("subcategories", len(subcategories)),
		slog.Int("assets", state.assets),
		slog.Int("skipped", len(state.skipped)))

	return &Result{
		Tree:          state.tree,
		Categories:    categories,
		Subcategories: subcategories,
		Skipped:       state.skipped,
		Assets:        state.assets,
	}, nil
}

func (b *Builder) walk(ctx context.Context, state *walkState, id NodeID, segments []string, rules *IgnoreRules) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel := strings.Join(segments, "/")
	absDir := filepath.Join(b.root, filepath.FromSlash(rel))

	rules, err := rules.Enter(absDir, segments)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read ignore file").
			Fatal().
			WithContext("path", rel).
			Build()
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read directory").
			Fatal().
			WithContext("path", rel).
			Build()
	}

	var dirs, files []string
	for _, e := range entries {
		name := e.Name()
		if !utf8.ValidString(name) {
			return errors.ContentError("non-UTF-8 path segment").
				WithCause(ErrNonUTF8).
				WithContext("path", path.Join(rel, fmt.Sprintf("%q", name))).
				Build()
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		child := append(append([]string(nil), segments...), name)
		isDir := e.IsDir()
		if rules.Ignored(child, isDir) {
			b.logger.Debug("Ignored by rule", logfields.Path(path.Join(rel, name)))
			continue
		}
		if isDir {
			dirs = append(dirs, name)
		} else if e.Type().IsRegular() {
			files = append(files, name)
		}
	}

	if err := b.classify(ctx, state, id, rel, files); err != nil {
		return err
	}

	for _, name := range dirs {
		if err := b.validator.Validate(name); err != nil {
			return errors.ContentError("invalid directory name").
				WithCause(err).
				WithContext("path", path.Join(rel, name)).
				Build()
		}
		child := state.tree.AddChild(id, name)
		if err := b.walk(ctx, state, child.ID, append(append([]string(nil), segments...), name), rules); err != nil {
			return err
		}
	}
	return nil
}

// classify attaches the index document, then translations, then hands
// everything else to the asset store.
func (b *Builder) classify(ctx context.Context, state *walkState, id NodeID, rel string, files []string) error {
	node, _ := state.tree.Node(id)

	var translations, others []string
	indexes := make(map[string]bool)
	for _, name := range files {
		if _, ok := IndexKind(name); ok {
			indexes[name] = true
			continue
		}
		if _, _, ok := ParseTranslationName(name); ok {
			translations = append(translations, name)
			continue
		}
		others = append(others, name)
	}

	for _, name := range IndexFiles {
		if !indexes[name] {
			continue
		}
		src := path.Join(rel, name)
		if node.Doc != nil {
			b.logger.Warn("Second index document skipped", logfields.Path(src))
			state.skip(src, "node already has an index document", nil)
			continue
		}
		kind, _ := IndexKind(name)
		doc, err := b.readDocument(src, kind)
		if err != nil {
			b.logger.Warn("Document skipped", logfields.Path(src), logfields.Error(err))
			state.skip(src, "front matter", err)
			continue
		}
		if doc.Meta.Draft {
			b.logger.Info("Draft document skipped", logfields.Path(src))
			state.skip(src, "draft", nil)
			continue
		}
		node.Doc = doc
	}

	for _, name := range translations {
		src := path.Join(rel, name)
		tag, kind, _ := ParseTranslationName(name)
		key := tag.String()
		switch {
		case node.Doc == nil:
			b.logger.Warn("Orphan translation skipped", logfields.Path(src), logfields.Lang(key))
			state.skip(src, "translation without index document", nil)
			continue
		case key == b.opts.DefaultLanguage.String():
			b.logger.Warn("Translation in default language skipped", logfields.Path(src), logfields.Lang(key))
			state.skip(src, "translation uses the default language", nil)
			continue
		}
		if _, dup := node.Doc.Translations[key]; dup {
			b.logger.Warn("Duplicate translation skipped", logfields.Path(src), logfields.Lang(key))
			state.skip(src, "duplicate translation", nil)
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(src)))
		if err != nil {
			b.logger.Warn("Unreadable translation skipped", logfields.Path(src), logfields.Error(err))
			state.skip(src, "unreadable", err)
			continue
		}
		meta, body, err := frontmatter.ParseDocument(raw, kind == KindPreBuilt)
		if err != nil {
			b.logger.Warn("Translation skipped", logfields.Path(src), logfields.Lang(key), logfields.Error(err))
			state.skip(src, "front matter", err)
			continue
		}
		if meta.Draft {
			b.logger.Info("Draft translation skipped", logfields.Path(src), logfields.Lang(key))
			state.skip(src, "draft", nil)
			continue
		}
		if node.Doc.Translations == nil {
			node.Doc.Translations = make(map[string]*TranslationLeaf)
		}
		node.Doc.Translations[key] = &TranslationLeaf{
			Lang:       tag,
			Kind:       kind,
			Raw:        raw,
			Body:       body,
			SourcePath: src,
			Meta:       meta,
		}
	}

	return b.prepareAssets(ctx, state, id, rel, others)
}

func (b *Builder) readDocument(src string, kind DocumentKind) (*DocumentData, error) {
	raw, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(src)))
	if err != nil {
		return nil, err
	}
	meta, body, err := frontmatter.ParseDocument(raw, kind == KindPreBuilt)
	if err != nil {
		return nil, err
	}
	return &DocumentData{Kind: kind, Raw: raw, Body: body, SourcePath: src, Meta: meta}, nil
}

// prepareAssets reads and prepares a directory's assets on a bounded pool and
// queues them in sorted order for addAssets.
func (b *Builder) prepareAssets(ctx context.Context, state *walkState, id NodeID, rel string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	prepared := make([]*assets.Prepared, len(names))
	failures := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, name := range names {
		src := path.Join(rel, name)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(src)))
			if err != nil {
				failures[i] = err
				return nil
			}
			prepared[i], failures[i] = b.store.Prepare(src, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, name := range names {
		src := path.Join(rel, name)
		switch {
		case failures[i] != nil:
			b.logger.Warn("Asset skipped", logfields.Path(src), logfields.Error(failures[i]))
			state.skip(src, "asset", failures[i])
		case prepared[i] == nil:
			b.logger.Debug("Empty asset skipped", logfields.Path(src))
			state.skip(src, "empty asset", nil)
		default:
			state.pending = append(state.pending, pendingAsset{node: id, src: src, prepared: prepared[i]})
		}
	}
	return nil
}

// addAssets registers the queued assets of directories that survived
// pruning, in walk order.
func (b *Builder) addAssets(state *walkState) {
	for _, p := range state.pending {
		if _, ok := state.tree.Node(p.node); !ok {
			b.logger.Warn("Asset of pruned directory skipped", logfields.Path(p.src))
			state.skip(p.src, "directory has no document", nil)
			continue
		}
		a := b.store.Add(p.prepared)
		state.assets++
		b.logger.Debug("Asset registered", logfields.Path(p.src), logfields.Asset(a.Name))
	}
	state.pending = nil
}
