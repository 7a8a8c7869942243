package build

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/render"
)

type memStore struct {
	mu        sync.Mutex
	current   []Artifact
	commits   int
	failWith  error
	active    int
	maxActive int
}

func (m *memStore) ListCurrentArtifacts(context.Context) ([]Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	return append([]Artifact(nil), m.current...), nil
}

func (m *memStore) Commit(_ context.Context, b *Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if m.failWith != nil {
		return m.failWith
	}
	m.commits++
	m.current = append([]Artifact(nil), b.Artifacts...)
	return nil
}

type recordingPublisher struct {
	bundles []*Bundle
}

func (p *recordingPublisher) Publish(_ context.Context, b *Bundle) error {
	p.bundles = append(p.bundles, b)
	return nil
}

type recordingNotifier struct {
	reports []*Report
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, r *Report) error {
	n.reports = append(n.reports, r)
	return n.err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	return dir
}

var themeFiles = map[string]string{
	"theme.toml":             "name = \"plain\"\nauthors = [\"someone\"]\nlink = \"https://example.com\"\nversion = \"0.1.0\"\n",
	"templates/index.html":   `<main>{{ .page.title }}</main>`,
	"templates/default.html": `<article><h1>{{ .page.title }}</h1>{{ .content.html }}</article>`,
	"static/site.css":        "body { margin: 0 }",
}

var siteFiles = map[string]string{
	"index.md":                "title = \"Home\"\n",
	"blog/index.md":           "title = \"Blog\"\nrss = true\n[category]\ntitle = \"The Blog\"\n",
	"blog/post/index.md":      "title = \"Post\"\ndate = 2024-01-02T00:00:00Z\n===\nFirst paragraph.\n\n![logo](logo.png)\n",
	"blog/post/logo.png":      "png-bytes",
	"blog/malformed/index.md": "+++\ntitle=\"X\"\n+++\nHello",
}

func newTestSession(t *testing.T, contentDir string, store ArtifactStore) *Session {
	t.Helper()
	cfg := Config{
		ContentDir:  contentDir,
		ThemeDir:    writeTree(t, themeFiles),
		IgnoreFiles: []string{".ignore"},
		Site:        render.Site{Name: "Site", BaseURL: "https://example.org", Author: "Ana", RSS: true},
		Workers:     2,
	}
	return NewSession(cfg, store)
}

func artifactPaths(list []Artifact) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Path)
	}
	return out
}

func TestSession_Build(t *testing.T) {
	store := &memStore{}
	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}
	contentDir := writeTree(t, siteFiles)
	s := newTestSession(t, contentDir, store).WithPublisher(pub).WithNotifier(notifier)

	report, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Committed)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 3, report.Outputs)
	assert.Equal(t, 1, report.Feeds)
	assert.Equal(t, 2, report.Assets)
	assert.Empty(t, report.Diff.Removed)

	paths := artifactPaths(report.Diff.Added)
	assert.Contains(t, paths, "/")
	assert.Contains(t, paths, "/blog")
	assert.Contains(t, paths, "/blog/post")
	assert.Contains(t, paths, "/blog/atom.xml")
	assert.NotContains(t, paths, "/blog/malformed")

	var skippedMalformed bool
	for _, sk := range report.Skipped {
		if strings.Contains(sk.Path, "malformed") {
			skippedMalformed = true
		}
	}
	assert.True(t, skippedMalformed, "malformed document must be reported as skipped")

	require.Len(t, pub.bundles, 1)
	assert.Equal(t, report.ID, pub.bundles[0].ID)
	require.Len(t, notifier.reports, 1)

	// Rebuilding unchanged content commits an empty diff.
	again, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Diff.Empty())
	assert.Equal(t, len(report.Diff.Added), again.Diff.Unchanged)
	assert.NotEqual(t, report.ID, again.ID)

	// Editing one page replaces exactly that artifact.
	post := filepath.Join(contentDir, "blog", "post", "index.md")
	require.NoError(t, os.WriteFile(post, []byte("title = \"Post\"\ndate = 2024-01-02T00:00:00Z\n===\nEdited.\n"), 0o600))
	edited, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, artifactPaths(edited.Diff.Added), "/blog/post")
	assert.Contains(t, artifactPaths(edited.Diff.Removed), "/blog/post")
	assert.Equal(t, 3, store.commits)
}

func TestSession_Build_ReportsDanglingLinks(t *testing.T) {
	files := map[string]string{
		"aboutpage/index.md": "title = \"About\"\n===\nSee [the blog](/blog), [the post](../blog/post/) and [gone](../missing/).\n",
	}
	for k, v := range siteFiles {
		files[k] = v
	}
	s := newTestSession(t, writeTree(t, files), &memStore{})

	report, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Committed, "dangling links do not fail the build")

	var dangling []string
	for _, sk := range report.Skipped {
		if sk.Reason != "dangling link" {
			continue
		}
		assert.Equal(t, "aboutpage/index.md", sk.Path)
		classified, ok := errors.AsClassified(sk.Err)
		require.True(t, ok)
		assert.Equal(t, errors.SeverityWarning, classified.Severity())
		u, _ := classified.Context().GetString("url")
		dangling = append(dangling, u)
	}
	assert.Equal(t, []string{"../missing/"}, dangling)
}

func TestSession_Build_ThemeFailureCommitsNothing(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, writeTree(t, siteFiles), store)
	s.cfg.ThemeDir = writeTree(t, map[string]string{
		"theme.toml":             "name = \"broken\"\n",
		"templates/default.html": "x",
	})

	report, err := s.Build(context.Background())
	require.Error(t, err)
	assert.False(t, report.Committed)
	assert.Equal(t, 0, store.commits)

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryTheme, ce.Category())
	assert.True(t, ce.IsFatal())
}

func TestSession_Build_LanguageTagFolderIsFatal(t *testing.T) {
	store := &memStore{}
	pub := &recordingPublisher{}
	files := map[string]string{
		"index.md":    "title = \"Home\"\n",
		"en/index.md": "title = \"Ambiguous\"\n",
	}
	s := newTestSession(t, writeTree(t, files), store).WithPublisher(pub)

	_, err := s.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, store.commits)
	assert.Empty(t, pub.bundles)
}

func TestSession_Build_CommitFailure(t *testing.T) {
	store := &memStore{failWith: stderrors.New("disk full")}
	pub := &recordingPublisher{}
	s := newTestSession(t, writeTree(t, siteFiles), store).WithPublisher(pub)

	report, err := s.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPersistence))
	assert.False(t, report.Committed)
	assert.Empty(t, pub.bundles)
}

func TestSession_Build_NotifyFailureKeepsBuild(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{err: stderrors.New("no broker")}
	s := newTestSession(t, writeTree(t, siteFiles), store).WithNotifier(notifier)

	report, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Committed)
	assert.Len(t, notifier.reports, 1)
}

func TestSession_Build_Serialized(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, writeTree(t, siteFiles), store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Build(context.Background())
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 2, store.commits)
	assert.Equal(t, 1, store.maxActive)
}
