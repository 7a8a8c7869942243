// Package markdown renders document bodies to HTML with syntax-highlighted
// code blocks, stable heading IDs, a table of contents and text statistics.
package markdown

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Options controls the Markdown dialect.
type Options struct {
	// DisableRawHTML escapes inline and block HTML instead of passing it through.
	DisableRawHTML bool
	// HardWraps renders soft line breaks as <br>.
	HardWraps bool
}

// Document is a rendered body.
type Document struct {
	HTML     []byte
	Headings []Heading
	TOC      string
	Stats    Stats
	Links    []Link
}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer with tables, footnotes, strikethrough, smart
// punctuation, heading attributes and automatic heading IDs enabled.
func New(opts Options) *Renderer {
	htmlOpts := []renderer.Option{}
	if !opts.DisableRawHTML {
		htmlOpts = append(htmlOpts, html.WithUnsafe())
	}
	if opts.HardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	htmlOpts = append(htmlOpts, renderer.WithNodeRenderers(util.Prioritized(&codeBlockRenderer{}, 100)))

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Footnote,
			extension.Typographer,
			extension.Linkify,
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(htmlOpts...),
	)
	return &Renderer{md: md}
}

// Render converts body to HTML and collects headings, statistics and links.
func (r *Renderer) Render(body []byte) (*Document, error) {
	ctx := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	root := r.md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, body, root); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	headings := collectHeadings(root, body)
	return &Document{
		HTML:     buf.Bytes(),
		Headings: headings,
		TOC:      RenderTOC(headings),
		Stats:    CountHTML(buf.Bytes()),
		Links:    collectLinks(root, body, ctx),
	}, nil
}

// LinkKind classifies an extracted link.
type LinkKind string

const (
	LinkKindInline              LinkKind = "inline"
	LinkKindImage               LinkKind = "image"
	LinkKindAuto                LinkKind = "auto"
	LinkKindReferenceDefinition LinkKind = "reference_definition"
)

// Link is a link-like construct found in a body.
type Link struct {
	Kind        LinkKind
	Destination string
}

func collectLinks(root gmast.Node, body []byte, ctx parser.Context) []Link {
	links := make([]Link, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *gmast.AutoLink:
			links = append(links, Link{Kind: LinkKindAuto, Destination: string(node.URL(body))})
		case *gmast.Image:
			links = append(links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			// Reference-style links arrive here already resolved.
			links = append(links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not the AST.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		links = append(links, Link{Kind: LinkKindReferenceDefinition, Destination: string(ref.Destination())})
	}
	return links
}
