package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/markdown"
)

// LogEntry is one dated entry of a log document.
type LogEntry struct {
	ID   string
	Date time.Time
	HTML template.HTML
}

type renderedBody struct {
	html     template.HTML
	toc      template.HTML
	headings []markdown.Heading
	stats    markdown.Stats
	raw      string
	summary  string
	log      []LogEntry
	links    []markdown.Link
}

func (r *Renderer) renderBody(node *content.Node, v variant) (*renderedBody, error) {
	switch v.kind {
	case content.KindPreBuilt:
		return r.finishBody(node, &renderedBody{
			html:  template.HTML(v.body), //nolint:gosec // pre-built pages are trusted author HTML
			stats: markdown.CountHTML(v.body),
			raw:   string(v.body),
		})
	case content.KindLog:
		return r.renderLog(node, v)
	}

	doc, err := r.markdown(v, v.body)
	if err != nil {
		return nil, err
	}
	return r.finishBody(node, &renderedBody{
		html:     template.HTML(doc.HTML), //nolint:gosec // goldmark output
		toc:      template.HTML(doc.TOC),  //nolint:gosec // built from escaped heading text
		headings: doc.Headings,
		stats:    doc.Stats,
		raw:      string(v.body),
		links:    doc.Links,
	})
}

// markdown expands content shortcodes and renders the result.
func (r *Renderer) markdown(v variant, src []byte) (*markdown.Document, error) {
	expanded, err := markdown.ExpandShortcodes(src, r.theme.Shortcode)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "shortcode expansion failed").
			WithContext("path", v.sourcePath).
			Build()
	}
	doc, err := r.md.Render(expanded)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "markdown rendering failed").
			WithContext("path", v.sourcePath).
			Build()
	}
	return doc, nil
}

// finishBody derives the summary from the link-rewritten content.
func (r *Renderer) finishBody(node *content.Node, b *renderedBody) (*renderedBody, error) {
	rewritten, err := r.postProcess(node.Path, []byte(b.html))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRender, "post-processing failed").
			WithContext("node", node.Path).
			Build()
	}
	b.summary = Summarize(rewritten, SummaryLimit)
	return b, nil
}

func (r *Renderer) renderLog(node *content.Node, v variant) (*renderedBody, error) {
	intro, raws, err := splitLog(v.body, r.loc)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryContent, "malformed log document").
			WithContext("path", v.sourcePath).
			Build()
	}

	b := &renderedBody{raw: string(v.body)}
	var all bytes.Buffer
	if len(bytes.TrimSpace(intro)) > 0 {
		doc, err := r.markdown(v, intro)
		if err != nil {
			return nil, err
		}
		b.html = template.HTML(doc.HTML) //nolint:gosec // goldmark output
		b.toc = template.HTML(doc.TOC)   //nolint:gosec // built from escaped heading text
		b.headings = doc.Headings
		b.links = append(b.links, doc.Links...)
		all.Write(doc.HTML)
	}

	seen := make(map[string]int)
	for _, e := range raws {
		doc, err := r.markdown(v, e.body)
		if err != nil {
			return nil, err
		}
		id := "entry-" + e.date.UTC().Format("20060102T150405Z")
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n)
		} else {
			seen[id] = 1
		}
		b.log = append(b.log, LogEntry{ID: id, Date: e.date, HTML: template.HTML(doc.HTML)}) //nolint:gosec // goldmark output
		b.links = append(b.links, doc.Links...)
		all.Write(doc.HTML)
	}
	sort.SliceStable(b.log, func(i, j int) bool { return b.log[i].Date.After(b.log[j].Date) })

	b.stats = markdown.CountHTML(all.Bytes())
	if b.html == "" && len(b.log) > 0 {
		b.html = b.log[0].HTML
	}
	return r.finishBody(node, b)
}

type rawEntry struct {
	date time.Time
	body []byte
}

// LogMarker introduces a log entry: "@ 2024-05-01" or "@ 2024-05-01T10:00:00Z".
const LogMarker = "@"

// splitLog separates a log body into the text before the first entry and
// the dated entries, in file order. Markers inside fenced code are ignored.
func splitLog(body []byte, loc *time.Location) ([]byte, []rawEntry, error) {
	if loc == nil {
		loc = time.UTC
	}
	var (
		intro   bytes.Buffer
		entries []rawEntry
		fence   markdown.FenceTracker
	)
	for i, line := range bytes.SplitAfter(body, []byte("\n")) {
		trimmed := strings.TrimRight(string(line), "\r\n")
		if !fence.Feed([]byte(trimmed)) && strings.HasPrefix(trimmed, LogMarker+" ") {
			stamp := strings.TrimSpace(strings.TrimPrefix(trimmed, LogMarker))
			date, err := parseLogDate(stamp, loc)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			entries = append(entries, rawEntry{date: date})
			continue
		}
		if len(entries) == 0 {
			intro.Write(line)
			continue
		}
		last := &entries[len(entries)-1]
		last.body = append(last.body, line...)
	}
	return intro.Bytes(), entries, nil
}

func parseLogDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid log date %q", s)
}
