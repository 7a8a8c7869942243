package render

import (
	"html/template"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/frontmatter"
)

// DefaultGroup is the page group when front matter names none.
const DefaultGroup = "default"

// Translation links one language of a document.
type Translation struct {
	Lang string `json:"lang"`
	Path string `json:"path"`
}

// Link is a child, sibling or series entry as seen by templates.
type Link struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Tags    []string  `json:"tags"`
	Summary string    `json:"summary"`
	Type    string    `json:"type"`
	Group   string    `json:"group"`
	Display string    `json:"display"`
	Pinned  bool      `json:"pinned"`
	URL     string    `json:"url,omitempty"`
}

func (r *Renderer) templateContext(node *content.Node, v variant, all []variant, body *renderedBody, fingerprint string) map[string]any {
	meta := v.meta
	group := meta.Group
	if group == "" {
		group = DefaultGroup
	}

	translations := make([]Translation, 0, len(all))
	for _, other := range all {
		translations = append(translations, Translation{Lang: other.lang, Path: r.langPath(other.lang, node.Path)})
	}

	ctx := map[string]any{
		"page": map[string]any{
			"title":             meta.Title,
			"authors":           meta.Authors,
			"date":              meta.Date,
			"edited_dates":      meta.EditedDates,
			"tags":              meta.Tags,
			"summary":           meta.Summary,
			"name":              node.Name,
			"path":              r.langPath(v.lang, node.Path),
			"node":              node.Path,
			"depth":             node.Depth,
			"type":              string(meta.Type()),
			"kind":              v.kind.String(),
			"group":             group,
			"display":           meta.Display,
			"template":          meta.Template,
			"children_template": meta.ChildrenTemplate,
			"rss":               meta.RSS,
			"index":             meta.Indexed(),
			"redirect_from":     meta.RedirectFrom,
			"fingerprint":       fingerprint,
			"lang":              v.lang,
			"source":            v.sourcePath,
		},
		"content": map[string]any{
			"html":                 body.html,
			"toc":                  body.toc,
			"headings":             body.headings,
			"raw":                  body.raw,
			"summary":              template.HTML(body.summary), //nolint:gosec // derived from rendered content
			"words":                body.stats.Words,
			"characters":           body.stats.Characters,
			"cjk":                  body.stats.CJK,
			"whitespace":           body.stats.Whitespace,
			"reading_time_seconds": body.stats.ReadingSeconds,
			"reading_time_minutes": body.stats.ReadingMinutes,
		},
		"category":            r.categoryContext(node),
		"subcategory":         r.subcategoryContext(node),
		"series":              r.seriesContext(node),
		"translations":        translations,
		"this_translation":    Translation{Lang: v.lang, Path: r.langPath(v.lang, node.Path)},
		"default_translation": Translation{Lang: r.site.DefaultLanguage.String(), Path: node.Path},
		"site":                r.siteCtx,
		"build": map[string]any{
			"id":      r.build.ID,
			"started": r.build.Started,
			"trigger": r.build.Trigger,
			"version": r.build.Version,
		},
		"custom":   meta.Custom,
		"children": r.children(node),
		"log":      map[string]any{"entries": body.log},
	}
	return ctx
}

func (r *Renderer) siteContext() map[string]any {
	names := make([]string, 0, len(r.tree.Categories))
	for name := range r.tree.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]map[string]any, 0, len(names))
	for _, name := range names {
		categories = append(categories, categoryMap(r.tree.Categories[name]))
	}
	return map[string]any{
		"name":             r.site.Name,
		"base_url":         r.site.BaseURL,
		"description":      r.site.Description,
		"author":           r.site.Author,
		"default_language": r.site.DefaultLanguage.String(),
		"rss":              r.site.RSS,
		"categories":       categories,
	}
}

func categoryMap(c *content.Category) map[string]any {
	return map[string]any{
		"name":          c.Name,
		"title":         c.Title,
		"path":          c.Path,
		"pinned_posts":  c.PinnedPosts,
		"subcategories": c.Subcategories,
	}
}

func (r *Renderer) categoryContext(node *content.Node) map[string]any {
	top := topLevel(r.tree.Tree, node)
	if top == nil {
		return nil
	}
	c, ok := r.tree.Categories[top.Name]
	if !ok {
		return nil
	}
	return categoryMap(c)
}

func (r *Renderer) subcategoryContext(node *content.Node) map[string]any {
	var second *content.Node
	switch {
	case node.Depth == 2:
		second = node
	case node.Depth > 2:
		ancestors := r.tree.Tree.Ancestors(node.ID)
		if len(ancestors) >= 3 {
			second = ancestors[len(ancestors)-3]
		}
	}
	if second == nil {
		return nil
	}
	s, ok := r.tree.Subcategories[second.Name]
	if !ok || s.Path != second.Path {
		return nil
	}
	return map[string]any{
		"name":   s.Name,
		"title":  s.Title,
		"path":   s.Path,
		"parent": s.Parent,
	}
}

// seriesContext describes the series a node heads or belongs to. Members are
// ordered by date, oldest first.
func (r *Renderer) seriesContext(node *content.Node) map[string]any {
	head := node
	if node.Doc.Meta.Series == nil {
		parent, ok := r.tree.Tree.Parent(node.ID)
		if !ok || parent.Doc == nil || parent.Doc.Meta == nil || parent.Doc.Meta.Series == nil {
			return nil
		}
		head = parent
	}
	cfg := head.Doc.Meta.Series

	entries := r.childLinks(head)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })

	ctx := map[string]any{
		"title":          firstNonEmpty(cfg.Title, head.Doc.Meta.Title),
		"path":           head.Path,
		"on_going":       cfg.OnGoing,
		"date_started":   cfg.DateStarted,
		"date_completed": cfg.DateCompleted,
		"entries":        entries,
	}
	if head == node {
		return ctx
	}
	for i, e := range entries {
		if e.Path != node.Path {
			continue
		}
		ctx["index"] = i
		if i > 0 {
			ctx["prev"] = entries[i-1]
		}
		if i+1 < len(entries) {
			ctx["next"] = entries[i+1]
		}
	}
	return ctx
}

// children lists indexed child documents, pinned first, then newest first.
func (r *Renderer) children(node *content.Node) []Link {
	links := r.childLinks(node)
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Pinned != links[j].Pinned {
			return links[i].Pinned
		}
		if !links[i].Date.Equal(links[j].Date) {
			return links[i].Date.After(links[j].Date)
		}
		return links[i].Name < links[j].Name
	})
	return links
}

func (r *Renderer) childLinks(node *content.Node) []Link {
	pinned := map[string]bool{}
	if node.Doc != nil && node.Doc.Meta != nil && node.Doc.Meta.Category != nil {
		for _, p := range node.Doc.Meta.Category.PinnedPosts {
			pinned[strings.Trim(p, "/")] = true
		}
	}

	var links []Link
	for _, c := range r.tree.Tree.Children(node.ID) {
		if c.Doc == nil || c.Doc.Meta == nil || !c.Doc.Meta.Indexed() {
			continue
		}
		m := c.Doc.Meta
		link := Link{
			Name:    c.Name,
			Path:    c.Path,
			Title:   m.Title,
			Date:    m.Date,
			Tags:    m.Tags,
			Summary: m.Summary,
			Type:    string(m.Type()),
			Group:   firstNonEmpty(m.Group, DefaultGroup),
			Display: m.Display,
			Pinned:  pinned[c.Name] || pinned[strings.Trim(c.Path, "/")],
		}
		switch m.Type() {
		case frontmatter.TypeExternal:
			link.URL = m.External.URL
		case frontmatter.TypeRedirect:
			link.URL = m.Redirect.To
		}
		links = append(links, link)
	}
	return links
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
