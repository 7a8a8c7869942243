package theme

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// MetadataFile is the theme descriptor at the bundle root.
const MetadataFile = "theme.toml"

// Metadata describes a theme bundle.
type Metadata struct {
	Name        string   `toml:"name"`
	Authors     []string `toml:"authors"`
	Link        string   `toml:"link"`
	Version     string   `toml:"version"`
	Description string   `toml:"description,omitempty"`
	License     string   `toml:"license,omitempty"`
}

func readMetadata(dir string) (Metadata, *semver.Version, error) {
	p := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(p)
	if err != nil {
		return Metadata{}, nil, errors.WrapError(err, errors.CategoryTheme, "theme metadata not readable").
			Fatal().
			WithContext("path", p).
			Build()
	}

	var meta Metadata
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&meta); err != nil {
		return Metadata{}, nil, errors.WrapError(err, errors.CategoryTheme, "malformed theme metadata").
			Fatal().
			WithContext("path", p).
			Build()
	}

	var missing []string
	if strings.TrimSpace(meta.Name) == "" {
		missing = append(missing, "name")
	}
	if len(meta.Authors) == 0 {
		missing = append(missing, "authors")
	}
	if strings.TrimSpace(meta.Link) == "" {
		missing = append(missing, "link")
	}
	if strings.TrimSpace(meta.Version) == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return Metadata{}, nil, errors.ThemeError("theme metadata incomplete").
			WithContext("path", p).
			WithContext("missing", strings.Join(missing, ",")).
			Build()
	}

	version, err := semver.NewVersion(meta.Version)
	if err != nil {
		return Metadata{}, nil, errors.WrapError(err, errors.CategoryTheme, "invalid theme version").
			Fatal().
			WithContext("path", p).
			WithContext("version", meta.Version).
			Build()
	}
	return meta, version, nil
}
