package content

import (
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/moklog/internal/frontmatter"
	"git.home.luguber.info/inful/moklog/internal/logfields"
)

// Category aggregates a depth-1 directory marked with [category].
type Category struct {
	Name          string
	Path          string
	Title         string
	PinnedPosts   []string
	Subcategories []string // sorted member names
}

// Subcategory aggregates a depth-2 directory marked with [subcategory].
type Subcategory struct {
	Name   string
	Path   string
	Parent string
	Title  string
}

// resolveCategories runs the depth-limited second pass over a pruned tree.
func resolveCategories(t *Tree, logger *slog.Logger) (map[string]*Category, map[string]*Subcategory, []Skip) {
	categories := make(map[string]*Category)
	subcategories := make(map[string]*Subcategory)
	var skipped []Skip

	for _, n := range t.Children(RootID) {
		if n.Doc == nil || n.Doc.Meta == nil {
			continue
		}
		switch n.Doc.Meta.Type() {
		case frontmatter.TypeCategory:
			cfg := n.Doc.Meta.Category
			title := cfg.Title
			if title == "" {
				title = n.Doc.Meta.Title
			}
			categories[n.Name] = &Category{
				Name:        n.Name,
				Path:        n.Path,
				Title:       title,
				PinnedPosts: append([]string(nil), cfg.PinnedPosts...),
			}
		case frontmatter.TypeSubcategory:
			logger.Warn("Subcategory config outside depth 2 ignored", logfields.Node(n.Path))
		}
	}

	for _, top := range t.Children(RootID) {
		for _, n := range t.Children(top.ID) {
			if n.Doc == nil || n.Doc.Meta == nil {
				continue
			}
			switch n.Doc.Meta.Type() {
			case frontmatter.TypeSubcategory:
				parent, ok := categories[top.Name]
				if !ok {
					logger.Warn("Subcategory without parent category skipped", logfields.Node(n.Path))
					skipped = append(skipped, Skip{Path: n.Path, Reason: "subcategory parent is not a category"})
					continue
				}
				if prev, dup := subcategories[n.Name]; dup {
					logger.Warn("Duplicate subcategory name skipped",
						logfields.Node(n.Path), slog.String("existing", prev.Path))
					skipped = append(skipped, Skip{Path: n.Path, Reason: "duplicate subcategory name"})
					continue
				}
				title := n.Doc.Meta.Subcategory.Title
				if title == "" {
					title = n.Doc.Meta.Title
				}
				subcategories[n.Name] = &Subcategory{Name: n.Name, Path: n.Path, Parent: top.Name, Title: title}
				parent.Subcategories = append(parent.Subcategories, n.Name)
			case frontmatter.TypeCategory:
				logger.Warn("Category config outside depth 1 ignored", logfields.Node(n.Path))
			}
		}
	}

	for _, c := range categories {
		sort.Strings(c.Subcategories)
	}
	return categories, subcategories, skipped
}
