// Package render turns content nodes into HTML outputs: front matter,
// markdown, template context, theme template and HTML post-processing.
package render

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/inful/mdfp"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/frontmatter"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/markdown"
)

// Templates is what rendering needs from a loaded theme.
type Templates interface {
	Has(name string) bool
	Execute(w io.Writer, name string, data any) error
	Shortcode(name string, args map[string]string) (string, error)
}

// Site carries site-wide settings exposed to templates.
type Site struct {
	Name            string
	BaseURL         string
	Description     string
	Author          string
	DefaultLanguage language.Tag
	RSS             bool
}

// BuildInfo identifies the build a render belongs to.
type BuildInfo struct {
	ID      string
	Started time.Time
	Trigger string
	Version string
}

// OutputKind distinguishes rendered pages from redirects.
type OutputKind string

const (
	OutputPage     OutputKind = "page"
	OutputRedirect OutputKind = "redirect"
)

// Output is one rendered artifact of a node.
type Output struct {
	Kind        OutputKind
	Path        string // logical URL path
	Node        string // content node path
	Lang        string
	HTML        []byte
	Summary     string
	Redirect    string
	Title       string
	Authors     []string
	Date        time.Time
	Tags        []string
	Fingerprint string
	Indexed     bool
	SourcePath  string
	Dangling    []string // markdown links to neither an asset nor a document
}

// Options configures a Renderer.
type Options struct {
	Markdown markdown.Options
	Location *time.Location
	Logger   *slog.Logger
}

// Renderer renders nodes of one content tree against one theme. It is safe
// for concurrent use once constructed.
type Renderer struct {
	theme  Templates
	tree   *content.Result
	store  *assets.Store
	md     *markdown.Renderer
	site   Site
	build  BuildInfo
	loc    *time.Location
	logger *slog.Logger

	siteCtx map[string]any
}

// New creates a renderer.
func New(theme Templates, tree *content.Result, store *assets.Store, site Site, build BuildInfo, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if site.DefaultLanguage.IsRoot() {
		site.DefaultLanguage = language.English
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		theme:  theme,
		tree:   tree,
		store:  store,
		md:     markdown.New(opts.Markdown),
		site:   site,
		build:  build,
		loc:    loc,
		logger: logger,
	}
	r.siteCtx = r.siteContext()
	return r
}

// variant is one language of a node's document.
type variant struct {
	lang       string
	kind       content.DocumentKind
	meta       *frontmatter.ConfigMeta
	front      []byte
	body       []byte
	sourcePath string
}

// Render produces every output of a node: one page or redirect per language
// plus redirect_from aliases. A failure in any language fails the node.
func (r *Renderer) Render(ctx context.Context, node *content.Node) ([]Output, error) {
	if node == nil || node.Doc == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	variants := r.variants(node)

	var outputs []Output
	for i, v := range variants {
		out, err := r.renderVariant(node, v, variants)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
		if i == 0 {
			outputs = append(outputs, r.aliases(node, v.meta)...)
		}
	}
	return outputs, nil
}

// variants lists the default document and every translation whose front
// matter parses. A broken translation is dropped on its own.
func (r *Renderer) variants(node *content.Node) []variant {
	doc := node.Doc
	vs := []variant{{
		lang:       r.site.DefaultLanguage.String(),
		kind:       doc.Kind,
		meta:       doc.Meta,
		front:      frontOf(doc.Raw, doc.Kind),
		body:       doc.Body,
		sourcePath: doc.SourcePath,
	}}

	for _, lang := range doc.Languages() {
		leaf := doc.Translations[lang]
		meta, body := leaf.Meta, leaf.Body
		if meta == nil {
			var err error
			meta, body, err = frontmatter.ParseDocument(leaf.Raw, leaf.Kind == content.KindPreBuilt)
			if err != nil {
				r.logger.Warn("Translation dropped",
					logfields.Path(leaf.SourcePath),
					logfields.Lang(lang),
					logfields.Error(err))
				continue
			}
		}
		vs = append(vs, variant{
			lang:       lang,
			kind:       leaf.Kind,
			meta:       inherit(meta, doc.Meta),
			front:      frontOf(leaf.Raw, leaf.Kind),
			body:       body,
			sourcePath: leaf.SourcePath,
		})
	}
	return vs
}

// frontOf returns the front matter bytes the way ParseDocument reads them.
func frontOf(raw []byte, kind content.DocumentKind) []byte {
	front, _, had, _ := frontmatter.Split(raw)
	if had {
		return front
	}
	if kind == content.KindPreBuilt {
		return nil
	}
	return raw
}

// inherit fills structural settings of a translation from its default
// document; a translation cannot change what kind of node it belongs to.
func inherit(t, base *frontmatter.ConfigMeta) *frontmatter.ConfigMeta {
	out := *t
	out.Category = base.Category
	out.Subcategory = base.Subcategory
	out.Series = base.Series
	out.Redirect = base.Redirect
	out.External = base.External
	out.RedirectFrom = nil
	if out.Template == "" {
		out.Template = base.Template
	}
	if out.ChildrenTemplate == "" {
		out.ChildrenTemplate = base.ChildrenTemplate
	}
	if out.Date.IsZero() {
		out.Date = base.Date
	}
	if out.Index == nil {
		out.Index = base.Index
	}
	return &out
}

func (r *Renderer) renderVariant(node *content.Node, v variant, all []variant) (Output, error) {
	outPath := r.langPath(v.lang, node.Path)
	fingerprint := mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(v.front), "\n"), string(v.body))
	base := Output{
		Path:        outPath,
		Node:        node.Path,
		Lang:        v.lang,
		Title:       v.meta.Title,
		Authors:     v.meta.Authors,
		Date:        v.meta.Date,
		Tags:        v.meta.Tags,
		Fingerprint: fingerprint,
		Indexed:     v.meta.Indexed(),
		SourcePath:  v.sourcePath,
	}

	switch v.meta.Type() {
	case frontmatter.TypeRedirect:
		return r.redirectOutput(base, v.meta.Redirect.To), nil
	case frontmatter.TypeExternal:
		return r.redirectOutput(base, v.meta.External.URL), nil
	}

	body, err := r.renderBody(node, v)
	if err != nil {
		return Output{}, err
	}

	name, err := r.resolveTemplate(node, v.meta)
	if err != nil {
		return Output{}, err
	}

	data := r.templateContext(node, v, all, body, fingerprint)
	var buf bytes.Buffer
	if err := r.theme.Execute(&buf, name, data); err != nil {
		return Output{}, errors.WrapError(err, errors.CategoryRender, "template execution failed").
			WithContext("path", v.sourcePath).
			WithContext("template", name).
			Build()
	}

	html, err := r.postProcess(node.Path, buf.Bytes())
	if err != nil {
		return Output{}, errors.WrapError(err, errors.CategoryRender, "post-processing failed").
			WithContext("path", v.sourcePath).
			Build()
	}

	summary := body.summary
	if v.meta.Summary != "" {
		summary = "<p>" + template.HTMLEscapeString(v.meta.Summary) + "</p>"
	}

	r.logger.Debug("Rendered document",
		logfields.Node(node.Path),
		logfields.Lang(v.lang),
		logfields.Template(name))

	base.Kind = OutputPage
	base.HTML = html
	base.Summary = summary
	base.Dangling = r.dangling(node.Path, body.links)
	return base, nil
}

// langPath prefixes non-default languages with /{lang}.
func (r *Renderer) langPath(lang, p string) string {
	if lang == r.site.DefaultLanguage.String() {
		return p
	}
	if p == "/" {
		return "/" + lang
	}
	return "/" + lang + p
}
