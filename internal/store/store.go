// Package store persists committed builds: the current artifact set, the
// rendered pages and redirects, feeds, asset bytes and the asset link map.
// SQLite is the durable implementation; Memory serves tests and
// single-shot builds.
package store

import (
	"context"
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/render"
)

// ErrNotFound is returned by lookups of paths absent from the current build.
var ErrNotFound = stderrors.New("store: not found")

// BuildRecord is the persisted summary of a committed build.
type BuildRecord struct {
	ID        string    `json:"id"`
	Started   time.Time `json:"started"`
	Committed time.Time `json:"committed"`
	Trigger   string    `json:"trigger,omitempty"`
	Artifacts int       `json:"artifacts"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
	Unchanged int       `json:"unchanged"`
}

// Asset is a stored asset payload.
type Asset struct {
	URL       string
	Hash      uint64
	MediaType string
	Data      []byte
}

// Store is the artifact store plus the read side used by serving and
// status reporting.
type Store interface {
	build.ArtifactStore
	Page(ctx context.Context, path string) (*render.Output, error)
	Feed(ctx context.Context, path string) ([]byte, error)
	Asset(ctx context.Context, url string) (*Asset, error)
	Links(ctx context.Context) (map[string]string, error)
	Builds(ctx context.Context, limit int) ([]BuildRecord, error)
	Close() error
}

// Open returns a SQLite store for a non-empty path and a Memory store otherwise.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemory(), nil
	}
	return NewSQLite(path)
}

func recordOf(b *build.Bundle, committed time.Time) BuildRecord {
	return BuildRecord{
		ID:        b.ID,
		Started:   b.Started,
		Committed: committed,
		Trigger:   b.Trigger,
		Artifacts: len(b.Artifacts),
		Added:     len(b.Diff.Added),
		Removed:   len(b.Diff.Removed),
		Unchanged: b.Diff.Unchanged,
	}
}
