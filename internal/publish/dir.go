// Package publish writes committed bundles to an output directory laid out
// for a plain static file server.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/logfields"
)

// IndexFile is the file a page path is published as.
const IndexFile = "index.html"

// Dir publishes bundles below a root directory.
type Dir struct {
	root   string
	clean  bool
	logger *slog.Logger
}

// NewDir creates a publisher. With clean set, files of removed artifacts are
// deleted.
func NewDir(root string, clean bool, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: root, clean: clean, logger: logger}
}

// FilePath maps an artifact path to its file below the root. Page and
// redirect paths get IndexFile appended.
func FilePath(kind build.ArtifactKind, logical string) string {
	p := path.Clean("/" + logical)
	if kind == build.ArtifactPage || kind == build.ArtifactRedirect {
		p = path.Join(p, IndexFile)
	}
	return strings.TrimPrefix(p, "/")
}

// Publish writes every page, redirect and feed of b and every asset not
// already present, then removes dropped artifacts when cleaning.
func (d *Dir) Publish(ctx context.Context, b *build.Bundle) error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	written := 0
	for _, o := range b.Pages {
		if err := d.write(FilePath(build.ArtifactPage, o.Path), o.HTML); err != nil {
			return err
		}
		written++
	}
	for _, f := range b.Feeds {
		if err := d.write(FilePath(build.ArtifactFeed, f.Path), f.Data); err != nil {
			return err
		}
		written++
	}
	for _, a := range b.Assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := FilePath(build.ArtifactAsset, b.AssetURL(a))
		if _, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(rel))); err == nil {
			continue // content-addressed: same name, same bytes
		}
		if err := d.write(rel, a.Data); err != nil {
			return err
		}
		written++
	}

	removed := 0
	if d.clean {
		var err error
		if removed, err = d.prune(b); err != nil {
			return err
		}
	}
	d.logger.Info("Published build", logfields.BuildID(b.ID), logfields.Path(d.root),
		slog.Int("written", written), slog.Int("removed", removed))
	return nil
}

// prune deletes files of removed artifacts no current artifact maps to.
func (d *Dir) prune(b *build.Bundle) (int, error) {
	keep := make(map[string]struct{}, len(b.Artifacts))
	for _, a := range b.Artifacts {
		keep[FilePath(a.Kind, a.Path)] = struct{}{}
	}
	removed := 0
	for _, a := range b.Diff.Removed {
		rel := FilePath(a.Kind, a.Path)
		if _, ok := keep[rel]; ok {
			continue
		}
		full, err := d.resolve(rel)
		if err != nil {
			return removed, err
		}
		if err := os.Remove(full); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("remove %s: %w", rel, err)
		}
		removed++
		d.removeEmptyParents(filepath.Dir(full))
	}
	return removed, nil
}

func (d *Dir) removeEmptyParents(dir string) {
	root := filepath.Clean(d.root)
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// resolve joins rel to the root, rejecting paths that escape it.
func (d *Dir) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output path escapes output directory: %s", rel)
	}
	return filepath.Join(d.root, clean), nil
}

// write replaces a file atomically via a temporary sibling.
func (d *Dir) write(rel string, data []byte) error {
	full, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".publish-*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", rel, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}
