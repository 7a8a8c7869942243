package build

import (
	"sort"

	"github.com/zeebo/xxh3"
)

// ArtifactKind classifies a published artifact.
type ArtifactKind string

const (
	ArtifactPage     ArtifactKind = "page"
	ArtifactRedirect ArtifactKind = "redirect"
	ArtifactFeed     ArtifactKind = "feed"
	ArtifactAsset    ArtifactKind = "asset"
)

// Artifact is the unit of diffing: a logical path and the hash of the bytes
// published there.
type Artifact struct {
	Path string       `json:"path"`
	Hash uint64       `json:"hash"`
	Kind ArtifactKind `json:"kind"`
}

// HashBytes is the content hash used for rendered artifacts.
func HashBytes(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Diff is the change between two artifact sets. An artifact whose bytes
// changed appears in both lists: the new hash in Added, the old in Removed.
type Diff struct {
	Added     []Artifact `json:"added"`
	Removed   []Artifact `json:"removed"`
	Unchanged int        `json:"unchanged"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

type artifactKey struct {
	path string
	hash uint64
}

// ComputeDiff compares the committed artifacts with the current ones. Both
// result lists are sorted by path, then hash.
func ComputeDiff(previous, current []Artifact) Diff {
	prev := make(map[artifactKey]struct{}, len(previous))
	for _, a := range previous {
		prev[artifactKey{a.Path, a.Hash}] = struct{}{}
	}

	var d Diff
	seen := make(map[artifactKey]struct{}, len(current))
	for _, a := range current {
		k := artifactKey{a.Path, a.Hash}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := prev[k]; ok {
			d.Unchanged++
			continue
		}
		d.Added = append(d.Added, a)
	}
	for _, a := range previous {
		k := artifactKey{a.Path, a.Hash}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		d.Removed = append(d.Removed, a)
	}

	sortArtifacts(d.Added)
	sortArtifacts(d.Removed)
	return d
}

func sortArtifacts(list []Artifact) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Path != list[j].Path {
			return list[i].Path < list[j].Path
		}
		return list[i].Hash < list[j].Hash
	})
}
