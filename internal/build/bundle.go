package build

import (
	"context"
	"sort"
	"time"

	"git.home.luguber.info/inful/moklog/internal/assets"
	"git.home.luguber.info/inful/moklog/internal/feed"
	"git.home.luguber.info/inful/moklog/internal/render"
)

// Bundle is everything one build produced. It is handed to the artifact
// store, the publisher and nothing else; receivers must not mutate it.
type Bundle struct {
	ID      string
	Started time.Time
	Trigger string

	Pages       []render.Output // pages and redirects, sorted by path
	Feeds       []*feed.Feed
	Assets      []*assets.StaticAsset
	AssetPrefix string
	Links       map[string]string // asset source path -> published URL

	Artifacts []Artifact // sorted by path
	Diff      Diff
}

// AssetURL returns the published URL of an asset of the bundle.
func (b *Bundle) AssetURL(a *assets.StaticAsset) string {
	return b.AssetPrefix + a.Name
}

// ArtifactStore persists committed artifact sets.
type ArtifactStore interface {
	ListCurrentArtifacts(ctx context.Context) ([]Artifact, error)
	// Commit replaces the current artifact set with the bundle's, atomically.
	Commit(ctx context.Context, b *Bundle) error
}

// Publisher makes a committed bundle visible, e.g. by writing an output directory.
type Publisher interface {
	Publish(ctx context.Context, b *Bundle) error
}

// Notifier announces a committed build.
type Notifier interface {
	Notify(ctx context.Context, r *Report) error
}

func newBundle(report *Report, pages []render.Output, feeds []*feed.Feed, store *assets.Store) *Bundle {
	b := &Bundle{
		ID:          report.ID,
		Started:     report.Started,
		Trigger:     report.Trigger,
		Pages:       pages,
		Feeds:       feeds,
		Assets:      store.Assets(),
		AssetPrefix: store.Prefix(),
		Links:       store.Links(),
	}
	sort.Slice(b.Pages, func(i, j int) bool { return b.Pages[i].Path < b.Pages[j].Path })
	sort.Slice(b.Feeds, func(i, j int) bool { return b.Feeds[i].Path < b.Feeds[j].Path })

	artifacts := make([]Artifact, 0, len(b.Pages)+len(b.Feeds)+len(b.Assets))
	for _, o := range b.Pages {
		kind := ArtifactPage
		if o.Kind == render.OutputRedirect {
			kind = ArtifactRedirect
		}
		artifacts = append(artifacts, Artifact{Path: o.Path, Hash: HashBytes(o.HTML), Kind: kind})
	}
	for _, f := range b.Feeds {
		artifacts = append(artifacts, Artifact{Path: f.Path, Hash: HashBytes(f.Data), Kind: ArtifactFeed})
	}
	for _, a := range b.Assets {
		artifacts = append(artifacts, Artifact{Path: b.AssetURL(a), Hash: a.Hash, Kind: ArtifactAsset})
	}
	sortArtifacts(artifacts)
	b.Artifacts = artifacts
	return b
}

// Count returns how many artifacts of a kind the bundle holds.
func (b *Bundle) Count(kind ArtifactKind) int {
	n := 0
	for _, a := range b.Artifacts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
