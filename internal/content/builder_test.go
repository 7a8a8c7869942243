package content

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func build(t *testing.T, root string) (*Result, *assets.Store, error) {
	t.Helper()
	store := assets.NewStore()
	b := NewBuilder(root, store, Options{
		IgnoreFiles: []string{".ignore", ".mkignore", ".pengignore"},
		Workers:     4,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	res, err := b.Build(context.Background())
	return res, store, err
}

const page = "title = \"Page\"\n===\nHello\n"

func TestBuild_CategoryAndSubcategory(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.md":                     page,
		"blog/index.md":                "title = \"Blog\"\n[category]\ntitle = \"The Blog\"\n===\n",
		"blog/rust/index.md":           "[subcategory]\ntitle = \"Rust\"\n===\n",
		"blog/rust/ownership/index.md": page,
	})

	res, _, err := build(t, root)
	require.NoError(t, err)

	require.Contains(t, res.Categories, "blog")
	assert.Equal(t, "The Blog", res.Categories["blog"].Title)
	assert.Equal(t, []string{"rust"}, res.Categories["blog"].Subcategories)

	require.Contains(t, res.Subcategories, "rust")
	assert.Equal(t, "blog", res.Subcategories["rust"].Parent)
	assert.Equal(t, "/blog/rust", res.Subcategories["rust"].Path)

	_, ok := res.Tree.Lookup("/blog/rust/ownership")
	assert.True(t, ok)
}

func TestBuild_SubcategoryWithoutCategoryIsSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"notes/index.md":      page,
		"notes/tips/index.md": "[subcategory]\ntitle = \"Tips\"\n===\n",
	})

	res, _, err := build(t, root)
	require.NoError(t, err)
	assert.Empty(t, res.Subcategories)
	assert.Contains(t, skippedPaths(res), "/notes/tips")
}

func TestBuild_PlainPageHasNoCategorySideEffects(t *testing.T) {
	root := writeTree(t, map[string]string{
		"about/index.md": "title = \"A\"\n===\nAbout us\n",
	})

	res, _, err := build(t, root)
	require.NoError(t, err)

	n, ok := res.Tree.Lookup("/about")
	require.True(t, ok)
	require.NotNil(t, n.Doc)
	assert.Equal(t, KindPage, n.Doc.Kind)
	assert.Equal(t, "A", n.Doc.Meta.Title)
	assert.Empty(t, res.Categories)
	assert.Empty(t, res.Subcategories)
}

func TestBuild_NamespaceViolationsAreFatal(t *testing.T) {
	names := []string{"static", "Admin", "rss", "en", "ja", "fr/nested", "blog/de", "two words", "_hidden_"}
	for _, dir := range names {
		t.Run(dir, func(t *testing.T) {
			root := writeTree(t, map[string]string{
				"blog/index.md":   page,
				dir + "/index.md": page,
			})
			_, _, err := build(t, root)
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
			assert.True(t, errors.HasCategory(err, errors.CategoryContent))
		})
	}
}

func TestBuild_MalformedFrontMatterSkipsDocument(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.md":       page,
		"good/index.md":  page,
		"page/index.md":  "+++\ntitle=\"X\"\n+++\nHello",
		"page/photo.jpg": "jpeg",
	})

	res, store, err := build(t, root)
	require.NoError(t, err)

	_, ok := res.Tree.Lookup("/page")
	assert.False(t, ok)
	_, ok = res.Tree.Lookup("/good")
	assert.True(t, ok)
	assert.Contains(t, skippedPaths(res), "page/index.md")

	_, ok = store.Lookup("page/photo.jpg")
	assert.False(t, ok)
	assert.Contains(t, skippedPaths(res), "page/photo.jpg")
	assert.Zero(t, res.Assets)
	assert.Zero(t, store.Len())
}

func TestBuild_AssetsFollowTheirDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.md":                  page,
		"site.txt":                  "root asset",
		"gone/unfinished/index.md":  "title = \"WIP\"\ndraft = true\n===\n",
		"gone/unfinished/chart.txt": "chart",
		"gone/parent.txt":           "parent",
		"kept/index.md":             page,
		"kept/chart.txt":            "chart",
	})

	res, store, err := build(t, root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assets)

	_, ok := store.Lookup("site.txt")
	assert.True(t, ok)
	_, ok = store.Lookup("kept/chart.txt")
	assert.True(t, ok)
	_, ok = store.Lookup("gone/unfinished/chart.txt")
	assert.False(t, ok, "identical bytes must not alias a pruned path")
	_, ok = store.Lookup("gone/parent.txt")
	assert.False(t, ok)

	skipped := skippedPaths(res)
	assert.Contains(t, skipped, "gone/unfinished/chart.txt")
	assert.Contains(t, skipped, "gone/parent.txt")
}

func TestBuild_IdenticalAssetsDeduplicate(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/index.md": page,
		"a/logo.png": "identical-bytes",
		"b/index.md": page,
		"b/logo.png": "identical-bytes",
	})

	res, store, err := build(t, root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assets)
	assert.Equal(t, 1, store.Len())

	ua, ok := store.Resolve("a/logo.png")
	require.True(t, ok)
	ub, ok := store.Resolve("b/logo.png")
	require.True(t, ok)
	assert.Equal(t, ua, ub)
}

func TestBuild_Translations(t *testing.T) {
	root := writeTree(t, map[string]string{
		"post/index.md":         page,
		"post/fr.md":            "title = \"Page\"\n===\nBonjour\n",
		"post/fr.html":          "<p>Bonjour</p>",
		"post/en.md":            page,
		"post/ja.html":          "<p>こんにちは</p>",
		"lonely/child/index.md": page,
		"lonely/de.md":          page,
	})

	res, _, err := build(t, root)
	require.NoError(t, err)

	n, ok := res.Tree.Lookup("/post")
	require.True(t, ok)
	assert.Equal(t, []string{"fr", "ja"}, n.Doc.Languages())
	assert.Equal(t, KindPreBuilt, n.Doc.Translations["fr"].Kind, "fr.html sorts before fr.md")

	skipped := skippedPaths(res)
	assert.Contains(t, skipped, "post/en.md")
	assert.Contains(t, skipped, "post/fr.md")
	assert.Contains(t, skipped, "lonely/de.md")

	// lonely has no document, so its documented child goes with it.
	_, ok = res.Tree.Lookup("/lonely/child")
	assert.False(t, ok)
	assert.Contains(t, skipped, "/lonely/child")
}

func TestBuild_MalformedTranslationIsSkippedAlone(t *testing.T) {
	root := writeTree(t, map[string]string{
		"post/index.md": page,
		"post/de.md":    "title = = broken\n",
		"post/ko.md":    "title = \"Korean\"\n===\nAnnyeong\n",
	})

	res, _, err := build(t, root)
	require.NoError(t, err)

	n, ok := res.Tree.Lookup("/post")
	require.True(t, ok)
	require.NotNil(t, n.Doc)
	assert.Equal(t, []string{"ko"}, n.Doc.Languages())
	assert.Equal(t, "Korean", n.Doc.Translations["ko"].Meta.Title)
	assert.Equal(t, "Annyeong\n", string(n.Doc.Translations["ko"].Body))

	var found bool
	for _, s := range res.Skipped {
		if s.Path == "post/de.md" {
			found = true
			assert.Equal(t, "front matter", s.Reason)
			assert.Error(t, s.Err)
		}
	}
	assert.True(t, found, "broken translation recorded as skipped")
}

func TestBuild_IndexPriority(t *testing.T) {
	root := writeTree(t, map[string]string{
		"post/index.md":   page,
		"post/index.html": "<p>raw</p>",
		"log/index.log":   "title = \"Changes\"\n===\n@ 2024-01-02\nSecond\n",
	})

	res, _, err := build(t, root)
	require.NoError(t, err)

	n, _ := res.Tree.Lookup("/post")
	assert.Equal(t, KindPage, n.Doc.Kind)
	assert.Contains(t, skippedPaths(res), "post/index.html")

	l, ok := res.Tree.Lookup("/log")
	require.True(t, ok)
	assert.Equal(t, KindLog, l.Doc.Kind)
}

func TestBuild_IgnoreFilesAndHiddenEntries(t *testing.T) {
	root := writeTree(t, map[string]string{
		".mkignore":        "drafts/\n*.tmp\n",
		"index.md":         page,
		"drafts/index.md":  page,
		"post/index.md":    page,
		"post/scratch.tmp": "tmp",
		"post/.pengignore": "secret.txt\n",
		"post/secret.txt":  "secret",
		"post/keep.txt":    "keep",
		".git/config":      "[core]",
		"other/index.md":   page,
		"other/secret.txt": "not ignored here",
	})

	res, store, err := build(t, root)
	require.NoError(t, err)

	_, ok := res.Tree.Lookup("/drafts")
	assert.False(t, ok)
	_, ok = store.Lookup("post/scratch.tmp")
	assert.False(t, ok)
	_, ok = store.Lookup("post/secret.txt")
	assert.False(t, ok)
	_, ok = store.Lookup("post/keep.txt")
	assert.True(t, ok)
	_, ok = store.Lookup("other/secret.txt")
	assert.True(t, ok)
}

func TestBuild_DraftIsSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"wip/index.md": "title = \"WIP\"\ndraft = true\n===\n",
	})
	res, _, err := build(t, root)
	require.NoError(t, err)
	_, ok := res.Tree.Lookup("/wip")
	assert.False(t, ok)
}

func TestBuild_MissingRoot(t *testing.T) {
	_, _, err := build(t, filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func skippedPaths(res *Result) []string {
	out := make([]string, 0, len(res.Skipped))
	for _, s := range res.Skipped {
		out = append(out, s.Path)
	}
	return out
}
