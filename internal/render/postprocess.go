package render

import (
	"bytes"
	stderrors "errors"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/moklog/internal/markdown"
)

// SummaryLimit is the amount of text a summary collects before it stops at
// the next paragraph.
const SummaryLimit = 200

var linkAttrs = map[atom.Atom][]string{
	atom.A:      {"href"},
	atom.Link:   {"href"},
	atom.Img:    {"src"},
	atom.Script: {"src"},
	atom.Source: {"src"},
	atom.Video:  {"src", "poster"},
	atom.Audio:  {"src"},
	atom.Iframe: {"src"},
}

func lazyLoaded(a atom.Atom) bool {
	switch a {
	case atom.Img, atom.Iframe, atom.Audio, atom.Video:
		return true
	}
	return false
}

// postProcess rewrites asset links relative to the node and adds loading
// hints to media elements. Everything else is copied through byte for byte.
func (r *Renderer) postProcess(nodePath string, doc []byte) ([]byte, error) {
	dir := strings.TrimPrefix(nodePath, "/")
	z := html.NewTokenizer(bytes.NewReader(doc))
	var out bytes.Buffer
	out.Grow(len(doc))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !stderrors.Is(err, io.EOF) {
				return nil, err
			}
			return out.Bytes(), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			tok := z.Token()
			if !r.rewriteTag(&tok, dir) {
				out.Write(raw)
				continue
			}
			out.WriteString(tok.String())
		default:
			out.Write(z.Raw())
		}
	}
}

// rewriteTag edits tok in place and reports whether anything changed.
func (r *Renderer) rewriteTag(tok *html.Token, dir string) bool {
	changed := false
	for _, key := range linkAttrs[tok.DataAtom] {
		for i, a := range tok.Attr {
			if a.Namespace != "" || a.Key != key {
				continue
			}
			if u, ok := r.resolveLink(dir, a.Val); ok && u != a.Val {
				tok.Attr[i].Val = u
				changed = true
			}
		}
	}
	if lazyLoaded(tok.DataAtom) {
		changed = setAttr(tok, "loading", "lazy") || changed
	}
	if tok.DataAtom == atom.Video {
		changed = setAttr(tok, "preload", "metadata") || changed
	}
	return changed
}

func setAttr(tok *html.Token, key, val string) bool {
	for i, a := range tok.Attr {
		if a.Key == key {
			if a.Val == val {
				return false
			}
			tok.Attr[i].Val = val
			return true
		}
	}
	tok.Attr = append(tok.Attr, html.Attribute{Key: key, Val: val})
	return true
}

// localTarget splits a relative or root-relative reference into a content
// path key and its query/fragment suffix. Absolute, protocol-relative and
// fragment-only references are not local.
func localTarget(dir, ref string) (key, suffix string, ok bool) {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", "", false
	}
	if u, err := url.Parse(ref); err != nil || u.Scheme != "" {
		return "", "", false
	}

	target := ref
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		target, suffix = ref[:i], ref[i:]
	}
	if strings.HasPrefix(target, "/") {
		key = strings.TrimPrefix(target, "/")
	} else {
		key = path.Join(dir, target)
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key, suffix, true
}

// resolveLink maps a local reference to its published asset URL. Unknown
// targets are reported as not found.
func (r *Renderer) resolveLink(dir, ref string) (string, bool) {
	if r.store == nil {
		return "", false
	}
	key, suffix, ok := localTarget(dir, ref)
	if !ok {
		return "", false
	}
	u, ok := r.store.Resolve(key)
	if !ok {
		return "", false
	}
	return u + suffix, true
}

// dangling lists the local link destinations of a body that name neither a
// registered asset nor a document of the tree, sorted and without repeats.
func (r *Renderer) dangling(nodePath string, links []markdown.Link) []string {
	dir := strings.TrimPrefix(nodePath, "/")
	seen := make(map[string]bool)
	var out []string
	for _, l := range links {
		if l.Kind == markdown.LinkKindReferenceDefinition || seen[l.Destination] {
			continue
		}
		seen[l.Destination] = true
		key, _, ok := localTarget(dir, l.Destination)
		if !ok {
			continue
		}
		if _, found := r.resolveLink(dir, l.Destination); found {
			continue
		}
		if r.isDocument(key) {
			continue
		}
		out = append(out, l.Destination)
	}
	sort.Strings(out)
	return out
}

// isDocument reports whether key, a content-relative path, names a node of
// the tree, optionally with a language prefix or a trailing index file.
func (r *Renderer) isDocument(key string) bool {
	if r.tree == nil || r.tree.Tree == nil {
		return false
	}
	p := "/" + strings.Trim(path.Clean("/"+key), "/")
	for _, suffix := range []string{"/index.html", "/index.md"} {
		p = strings.TrimSuffix(p, suffix)
	}
	if p == "" {
		p = "/"
	}
	if _, ok := r.tree.Tree.Lookup(p); ok {
		return true
	}
	first, rest, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	if _, err := language.Parse(first); err != nil {
		return false
	}
	_, found := r.tree.Tree.Lookup("/" + rest)
	return found
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true,
	"track": true, "wbr": true,
}

// Summarize copies fragment until the first <p> that starts after more than
// limit characters of text, then closes any elements still open.
func Summarize(fragment []byte, limit int) string {
	z := html.NewTokenizer(bytes.NewReader(fragment))
	var (
		out   strings.Builder
		open  []string
		count int
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return closeOpen(&out, open)
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "p" && count > limit {
				return closeOpen(&out, open)
			}
			out.Write(z.Raw())
			if !voidElements[tag] {
				open = append(open, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			out.Write(z.Raw())
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					open = open[:i]
					break
				}
			}
		case html.TextToken:
			text := z.Raw()
			count += utf8.RuneCountInString(strings.TrimSpace(html.UnescapeString(string(text))))
			out.Write(text)
		default:
			out.Write(z.Raw())
		}
	}
}

func closeOpen(out *strings.Builder, open []string) string {
	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return strings.TrimSpace(out.String())
}
