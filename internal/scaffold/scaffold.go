// Package scaffold creates new content documents with valid front matter.
package scaffold

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/template"
	"time"

	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/frontmatter"
)

// ErrExists is returned when the target document is already present.
var ErrExists = stderrors.New("document already exists")

// DefaultBody is used when no body template is given.
const DefaultBody = "# {{ .Title }}\n\n"

// Kind selects the front matter section of a new document.
type Kind string

const (
	KindPage     Kind = "page"
	KindCategory Kind = "category"
	KindSeries   Kind = "series"
)

// Document describes a document to create.
type Document struct {
	Path    string // content-relative directory, slash separated
	Title   string
	Kind    Kind
	Lang    string // empty for the primary document, a BCP-47 tag for a translation
	Authors []string
	Tags    []string
	RSS     bool
	Draft   bool
	Date    time.Time
	Body    string // text/template source, DefaultBody when empty
}

// Create writes the document under contentDir and returns the written file.
// Existing files are never overwritten.
func Create(contentDir string, doc Document, names *content.NameValidator) (string, error) {
	if contentDir == "" {
		return "", errors.ValidationError("content directory is required").Build()
	}
	rel, err := validatePath(doc.Path, names)
	if err != nil {
		return "", err
	}
	fileName := content.IndexFiles[0]
	if doc.Lang != "" {
		tag, perr := language.Parse(doc.Lang)
		if perr != nil {
			return "", errors.WrapError(perr, errors.CategoryValidation, "invalid language tag").
				WithContext("lang", doc.Lang).Build()
		}
		fileName = tag.String() + ".md"
	}

	meta, err := metaFor(doc)
	if err != nil {
		return "", err
	}
	front, err := frontmatter.Marshal(meta)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryContent, "failed to encode front matter").Build()
	}

	bodyTemplate := doc.Body
	if bodyTemplate == "" {
		bodyTemplate = DefaultBody
	}
	body, err := RenderBody(bodyTemplate, map[string]any{
		"Title":   doc.Title,
		"Path":    rel,
		"Lang":    doc.Lang,
		"Tags":    doc.Tags,
		"Authors": doc.Authors,
	})
	if err != nil {
		return "", err
	}

	data := frontmatter.Join(front, []byte(body), true, frontmatter.Style{Newline: "\n"})
	return writeFile(contentDir, filepath.Join(filepath.FromSlash(rel), fileName), data)
}

func validatePath(p string, names *content.NameValidator) (string, error) {
	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" {
		return "", nil
	}
	if names == nil {
		names = content.NewNameValidator()
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "." || segment == ".." {
			return "", errors.ValidationError("path must stay inside the content directory").
				WithContext("path", p).Build()
		}
		if err := names.Validate(segment); err != nil {
			return "", errors.WrapError(err, errors.CategoryValidation, "invalid directory name").
				WithContext("path", p).Build()
		}
	}
	return p, nil
}

func metaFor(doc Document) (*frontmatter.ConfigMeta, error) {
	date := doc.Date
	if date.IsZero() {
		date = time.Now().UTC().Truncate(time.Second)
	}
	meta := &frontmatter.ConfigMeta{
		Title:   doc.Title,
		Authors: doc.Authors,
		Date:    date,
		Tags:    doc.Tags,
		RSS:     doc.RSS,
		Draft:   doc.Draft,
	}
	switch doc.Kind {
	case "", KindPage:
	case KindCategory:
		meta.Category = &frontmatter.CategoryConfig{Title: doc.Title}
	case KindSeries:
		meta.Series = &frontmatter.SeriesConfig{Title: doc.Title, OnGoing: true, DateStarted: date}
	default:
		return nil, errors.ValidationError("unknown document kind").WithContext("kind", string(doc.Kind)).Build()
	}
	return meta, nil
}

// RenderBody executes a text/template body. Date and DateTime are provided
// unless data sets them.
func RenderBody(bodyTemplate string, data map[string]any) (string, error) {
	tpl, err := template.New("body").Option("missingkey=error").Parse(bodyTemplate)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryTemplate, "parse body template").Build()
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, withBuiltins(data)); err != nil {
		return "", errors.WrapError(err, errors.CategoryTemplate, "render body template").Build()
	}
	return buf.String(), nil
}

func withBuiltins(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	now := time.Now().UTC()
	out["Date"] = now.Format(time.DateOnly)
	out["DateTime"] = now.Format(time.RFC3339)
	maps.Copy(out, data)
	return out
}

// writeFile creates rel under root, refusing to overwrite or escape root.
func writeFile(root, rel string, data []byte) (string, error) {
	full := filepath.Join(root, rel)
	if r, err := filepath.Rel(root, full); err != nil || strings.HasPrefix(r, "..") {
		return "", errors.ValidationError("output path escapes content directory").WithContext("path", rel).Build()
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "create document directory").Build()
	}
	// #nosec G304 -- full is validated to stay under root.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if stderrors.Is(err, os.ErrExist) || stderrors.Is(err, syscall.EEXIST) {
			return "", fmt.Errorf("%w: %s", ErrExists, full)
		}
		return "", errors.WrapError(err, errors.CategoryFileSystem, "write document").Build()
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", errors.WrapError(err, errors.CategoryFileSystem, "write document").Build()
	}
	if err := f.Close(); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "write document").Build()
	}
	return full, nil
}
