package render

import (
	"strings"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/frontmatter"
)

const (
	// RootTemplate renders the site root.
	RootTemplate = "index.html"
	// DefaultTemplate is the last resort for every other node.
	DefaultTemplate = "default.html"

	templateExt = ".html"
)

// resolveTemplate picks the template for a node: an explicit template, the
// nearest ancestor's children_template, {category}.html,
// {parent-directory}.html, then default.html. The root uses index.html.
func (r *Renderer) resolveTemplate(node *content.Node, meta *frontmatter.ConfigMeta) (string, error) {
	if meta.Template != "" {
		return r.require(node, withExt(meta.Template), "front matter template")
	}
	if node.IsRoot() {
		return r.require(node, RootTemplate, "root template")
	}

	tree := r.tree.Tree
	for _, a := range tree.Ancestors(node.ID) {
		if a.Doc != nil && a.Doc.Meta != nil && a.Doc.Meta.ChildrenTemplate != "" {
			return r.require(node, withExt(a.Doc.Meta.ChildrenTemplate), "children_template of "+a.Path)
		}
	}

	var candidates []string
	if top := topLevel(tree, node); top != nil {
		if _, ok := r.tree.Categories[top.Name]; ok {
			candidates = append(candidates, top.Name+templateExt)
		}
	}
	if parent, ok := tree.Parent(node.ID); ok && !parent.IsRoot() {
		candidates = append(candidates, parent.Name+templateExt)
	}
	candidates = append(candidates, DefaultTemplate)

	for _, name := range candidates {
		if r.theme.Has(name) {
			return name, nil
		}
	}
	return "", errors.RenderError("no template found").
		WithContext("node", node.Path).
		WithContext("candidates", strings.Join(candidates, ",")).
		Build()
}

func (r *Renderer) require(node *content.Node, name, source string) (string, error) {
	if r.theme.Has(name) {
		return name, nil
	}
	return "", errors.RenderError("template not found").
		WithContext("node", node.Path).
		WithContext("template", name).
		WithContext("source", source).
		Build()
}

func withExt(name string) string {
	if strings.HasSuffix(name, templateExt) {
		return name
	}
	return name + templateExt
}

// topLevel returns the depth-1 ancestor of node, or node itself at depth 1.
func topLevel(tree *content.Tree, node *content.Node) *content.Node {
	if node.Depth < 1 {
		return nil
	}
	if node.Depth == 1 {
		return node
	}
	ancestors := tree.Ancestors(node.ID)
	// ancestors end with the root; the one before it is depth 1.
	if len(ancestors) < 2 {
		return nil
	}
	return ancestors[len(ancestors)-2]
}
