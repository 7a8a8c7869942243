package markdown

import (
	"html"
	"strconv"
	"strings"
	"unicode"

	gmast "github.com/yuin/goldmark/ast"
)

// headingIDs implements parser.IDs with Slugify and numeric suffixes for
// repeated slugs. One instance is used per document.
type headingIDs struct {
	seen map[string]struct{}
}

func newHeadingIDs() *headingIDs {
	return &headingIDs{seen: make(map[string]struct{})}
}

func (s *headingIDs) Generate(value []byte, _ gmast.NodeKind) []byte {
	base := Slugify(string(value))
	if base == "" {
		base = "heading"
	}
	id := base
	for i := 1; ; i++ {
		if _, taken := s.seen[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(i)
	}
	s.seen[id] = struct{}{}
	return []byte(id)
}

func (s *headingIDs) Put(value []byte) {
	s.seen[string(value)] = struct{}{}
}

// Slugify lowercases s, keeps letters and digits and joins everything else
// with single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingHyphen = true
		}
	}
	return b.String()
}

// Heading is a heading of a rendered body, with the id goldmark gave it.
type Heading struct {
	Level int
	ID    string
	Text  string
}

// collectHeadings lists the heading nodes of a parsed body in document order.
// Setext headings and headings nested in quotes or lists are included; lines
// inside code blocks never become heading nodes.
func collectHeadings(root gmast.Node, source []byte) []Heading {
	var headings []Heading
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		h, ok := n.(*gmast.Heading)
		if !ok || !entering {
			return gmast.WalkContinue, nil
		}
		var id string
		if v, ok := h.AttributeString("id"); ok {
			switch v := v.(type) {
			case []byte:
				id = string(v)
			case string:
				id = v
			}
		}
		headings = append(headings, Heading{Level: h.Level, ID: id, Text: headingText(h, source)})
		return gmast.WalkSkipChildren, nil
	})
	return headings
}

func headingText(h *gmast.Heading, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(h, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *gmast.Text:
			b.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.WriteString(html.UnescapeString(string(n.Value)))
		case *gmast.AutoLink:
			b.Write(n.Label(source))
		case *gmast.RawHTML:
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// RenderTOC renders headings as nested <ul> lists. Skipped levels nest one
// list deeper; a heading between two open levels joins the deeper list.
func RenderTOC(headings []Heading) string {
	if len(headings) == 0 {
		return ""
	}

	var b strings.Builder
	var levels []int
	for _, h := range headings {
		switch {
		case len(levels) == 0 || h.Level > levels[len(levels)-1]:
			b.WriteString("<ul>")
			levels = append(levels, h.Level)
		default:
			for len(levels) > 1 && h.Level <= levels[len(levels)-2] {
				b.WriteString("</li></ul>")
				levels = levels[:len(levels)-1]
			}
			b.WriteString("</li>")
			if h.Level < levels[len(levels)-1] {
				levels[len(levels)-1] = h.Level
			}
		}
		b.WriteString(`<li><a href="#`)
		b.WriteString(html.EscapeString(h.ID))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(h.Text))
		b.WriteString("</a>")
	}
	for range levels {
		b.WriteString("</li></ul>")
	}
	return b.String()
}

// FenceTracker follows fenced code blocks across lines. The zero value is
// outside any fence.
type FenceTracker struct {
	char byte
	size int
}

// Feed reports whether line belongs to a fence (including its delimiters).
func (f *FenceTracker) Feed(line []byte) bool {
	s := string(line)
	indent := len(s) - len(strings.TrimLeft(s, " "))
	if indent > 3 {
		return f.size > 0
	}
	s = s[indent:]

	if f.size > 0 {
		n := runLength(s, f.char)
		if n >= f.size && strings.TrimSpace(s[n:]) == "" {
			f.size = 0
		}
		return true
	}

	if s == "" || (s[0] != '`' && s[0] != '~') {
		return false
	}
	n := runLength(s, s[0])
	if n < 3 {
		return false
	}
	if s[0] == '`' && strings.Contains(s[n:], "`") {
		return false
	}
	f.char = s[0]
	f.size = n
	return true
}

func runLength(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}
