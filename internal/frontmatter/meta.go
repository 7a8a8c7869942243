package frontmatter

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// ErrConflictingConfig is returned when more than one of category,
// subcategory, series, redirect and external is present.
var ErrConflictingConfig = stderrors.New("category, subcategory, series, redirect and external are mutually exclusive")

// Type classifies a document by the exclusive section it carries.
type Type string

const (
	TypePage        Type = "page"
	TypeCategory    Type = "category"
	TypeSubcategory Type = "subcategory"
	TypeSeries      Type = "series"
	TypeRedirect    Type = "redirect"
	TypeExternal    Type = "external"
)

// ConfigMeta is the parsed front matter of a document.
type ConfigMeta struct {
	Title            string         `toml:"title,omitempty"`
	Authors          []string       `toml:"authors,omitempty"`
	Date             time.Time      `toml:"date"`
	EditedDates      []time.Time    `toml:"edited_dates,omitempty"`
	Tags             []string       `toml:"tags,omitempty"`
	Summary          string         `toml:"summary,omitempty"`
	Template         string         `toml:"template,omitempty"`
	ChildrenTemplate string         `toml:"children_template,omitempty"`
	Index            *bool          `toml:"index,omitempty"`
	RSS              bool           `toml:"rss,omitempty"`
	Draft            bool           `toml:"draft,omitempty"`
	RedirectFrom     []string       `toml:"redirect_from,omitempty"`
	Group            string         `toml:"group,omitempty"`
	Display          string         `toml:"display,omitempty"`
	Custom           map[string]any `toml:"custom,omitempty"`

	Category    *CategoryConfig    `toml:"category,omitempty"`
	Subcategory *SubcategoryConfig `toml:"subcategory,omitempty"`
	Series      *SeriesConfig      `toml:"series,omitempty"`
	Redirect    *RedirectConfig    `toml:"redirect,omitempty"`
	External    *ExternalConfig    `toml:"external,omitempty"`
}

// CategoryConfig marks a depth-1 directory as a category.
type CategoryConfig struct {
	Title       string   `toml:"title,omitempty"`
	PinnedPosts []string `toml:"pinned_posts,omitempty"`
}

// SubcategoryConfig marks a depth-2 directory as a subcategory of its parent.
type SubcategoryConfig struct {
	Title string `toml:"title,omitempty"`
}

// SeriesConfig groups the children of a directory into an ordered series.
type SeriesConfig struct {
	Title         string    `toml:"title,omitempty"`
	OnGoing       bool      `toml:"on_going,omitempty"`
	DateStarted   time.Time `toml:"date_started"`
	DateCompleted time.Time `toml:"date_completed"`
}

// RedirectConfig turns a document into a redirect.
type RedirectConfig struct {
	To string `toml:"to,omitempty"`
}

// ExternalConfig points a document at content hosted elsewhere.
type ExternalConfig struct {
	URL    string `toml:"url,omitempty"`
	Source string `toml:"source,omitempty"`
}

// Type reports which exclusive section the metadata carries.
func (m *ConfigMeta) Type() Type {
	switch {
	case m.Category != nil:
		return TypeCategory
	case m.Subcategory != nil:
		return TypeSubcategory
	case m.Series != nil:
		return TypeSeries
	case m.Redirect != nil:
		return TypeRedirect
	case m.External != nil:
		return TypeExternal
	default:
		return TypePage
	}
}

// Indexed reports whether the document should be listed. Defaults to true.
func (m *ConfigMeta) Indexed() bool {
	return m.Index == nil || *m.Index
}

// Validate checks the exclusivity of the typed sections.
func (m *ConfigMeta) Validate() error {
	present := make([]string, 0, 5)
	if m.Category != nil {
		present = append(present, "category")
	}
	if m.Subcategory != nil {
		present = append(present, "subcategory")
	}
	if m.Series != nil {
		present = append(present, "series")
	}
	if m.Redirect != nil {
		present = append(present, "redirect")
	}
	if m.External != nil {
		present = append(present, "external")
	}
	if len(present) > 1 {
		return fmt.Errorf("%w (found %s)", ErrConflictingConfig, strings.Join(present, ", "))
	}
	if m.Redirect != nil && m.Redirect.To == "" {
		return fmt.Errorf("redirect.to is required")
	}
	if m.External != nil && m.External.URL == "" {
		return fmt.Errorf("external.url is required")
	}
	return nil
}

// Parse decodes and validates TOML front matter.
func Parse(raw []byte) (*ConfigMeta, error) {
	meta := &ConfigMeta{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := toml.Unmarshal(raw, meta); err != nil {
			return nil, errors.NewError(errors.CategoryValidation, "malformed front matter").
				WithCause(err).
				Build()
		}
	}
	if err := meta.Validate(); err != nil {
		return nil, errors.NewError(errors.CategoryValidation, "invalid front matter").
			WithCause(err).
			Build()
	}
	return meta, nil
}

// ParseDocument splits a payload and parses its front matter. Without a
// delimiter, markdown and log payloads are treated as all front matter while
// pre-built HTML payloads are treated as all body.
func ParseDocument(payload []byte, prebuilt bool) (*ConfigMeta, []byte, error) {
	front, body, had, _ := Split(payload)
	if !had {
		if prebuilt {
			return &ConfigMeta{}, payload, nil
		}
		front, body = payload, nil
	}
	meta, err := Parse(front)
	if err != nil {
		return nil, nil, err
	}
	return meta, body, nil
}

// Marshal encodes metadata as TOML front matter.
func Marshal(meta *ConfigMeta) ([]byte, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return toml.Marshal(meta)
}
