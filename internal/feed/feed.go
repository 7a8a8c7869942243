// Package feed generates Atom feeds for documents that enable rss.
package feed

import (
	"path"
	"sort"
	"strings"
	"time"

	atom "github.com/thomas11/atomgenerator"

	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// FileName is the feed file published below the feed owner's path.
const FileName = "atom.xml"

// Site identifies the feed publisher.
type Site struct {
	Title     string
	BaseURL   string
	Author    string
	AuthorURI string
}

// Entry is one rendered child document.
type Entry struct {
	Title   string
	Summary string
	Path    string
	Date    time.Time
	Tags    []string
}

// Feed is a generated Atom document.
type Feed struct {
	Path  string // logical URL path of the feed file
	Owner string // path of the document the feed belongs to
	Data  []byte
}

// PathFor returns the feed path of a document path.
func PathFor(docPath string) string {
	return path.Join("/", docPath, FileName)
}

// Generate renders the feed of one document. Entries are ordered newest
// first. The feed's update time is the newest entry date, so unchanged
// entries produce byte-identical feeds.
func Generate(site Site, title, docPath string, entries []Entry) (*Feed, error) {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	updated := time.Unix(0, 0).UTC()
	if len(sorted) > 0 && !sorted[0].Date.IsZero() {
		updated = sorted[0].Date
	}

	if title == "" {
		title = site.Title
	}
	f := atom.Feed{
		Title:   title,
		Link:    absolute(site.BaseURL, docPath),
		PubDate: updated,
	}
	if site.Author != "" {
		f.AddAuthor(atom.Author{
			Name: site.Author,
			Uri:  site.AuthorURI,
		})
	}

	for _, e := range sorted {
		entry := &atom.Entry{
			Title:       e.Title,
			Description: e.Summary,
			Link:        absolute(site.BaseURL, e.Path),
			PubDate:     e.Date,
		}
		if entry.PubDate.IsZero() {
			entry.PubDate = updated
		}
		for _, tag := range e.Tags {
			entry.AddCategory(atom.Category{Term: tag})
		}
		f.AddEntry(entry)
	}

	if errs := f.Validate(); len(errs) > 0 {
		return nil, errors.WrapError(errs[0], errors.CategoryRender, "invalid atom feed").
			WithContext("path", docPath).
			WithContext("problems", len(errs)).
			Build()
	}
	data, err := f.GenXml()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "failed to generate atom feed").
			WithContext("path", docPath).
			Build()
	}
	return &Feed{Path: PathFor(docPath), Owner: docPath, Data: data}, nil
}

func absolute(baseURL, p string) string {
	if baseURL == "" {
		return p
	}
	return strings.TrimSuffix(baseURL, "/") + path.Join("/", p)
}
