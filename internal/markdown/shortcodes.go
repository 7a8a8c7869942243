package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
)

var (
	shortcodePattern = regexp.MustCompile(`\{\{<\s*([A-Za-z0-9_-]+)((?:\s+[A-Za-z0-9_-]+=(?:"[^"]*"|'[^']*'))*)\s*>\}\}`)
	shortcodeArg     = regexp.MustCompile(`([A-Za-z0-9_-]+)=(?:"([^"]*)"|'([^']*)')`)
)

// ShortcodeFunc produces the replacement for one {{< name k="v" >}} call.
type ShortcodeFunc func(name string, args map[string]string) (string, error)

// Edit replaces source[Start:End] with Replacement.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ExpandShortcodes replaces content shortcodes outside fenced code blocks and
// inline code spans. The body is returned unchanged when it has none.
func ExpandShortcodes(body []byte, call ShortcodeFunc) ([]byte, error) {
	if !bytes.Contains(body, []byte("{{<")) {
		return body, nil
	}

	var edits []Edit
	var fence FenceTracker
	offset := 0
	for _, line := range bytes.SplitAfter(body, []byte("\n")) {
		start := offset
		offset += len(line)
		if fence.Feed(bytes.TrimRight(line, "\r\n")) {
			continue
		}
		for _, m := range shortcodePattern.FindAllSubmatchIndex(line, -1) {
			if insideCodeSpan(line[:m[0]]) {
				continue
			}
			name := string(line[m[2]:m[3]])
			args := parseShortcodeArgs(line[m[4]:m[5]])
			out, err := call(name, args)
			if err != nil {
				return nil, fmt.Errorf("shortcode %q: %w", name, err)
			}
			edits = append(edits, Edit{Start: start + m[0], End: start + m[1], Replacement: []byte(out)})
		}
	}
	return ApplyEdits(body, edits)
}

func parseShortcodeArgs(raw []byte) map[string]string {
	args := make(map[string]string)
	for _, m := range shortcodeArg.FindAllSubmatch(raw, -1) {
		value := m[2]
		if value == nil {
			value = m[3]
		}
		args[string(m[1])] = string(value)
	}
	return args
}

// insideCodeSpan reports whether an odd number of backticks precede the
// match on its line.
func insideCodeSpan(prefix []byte) bool {
	return bytes.Count(prefix, []byte("`"))%2 == 1
}

// ApplyEdits applies non-overlapping edits given as offsets into source.
func ApplyEdits(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out bytes.Buffer
	out.Grow(len(source))
	pos := 0
	for i, e := range sorted {
		switch {
		case e.Start < 0 || e.End < e.Start:
			return nil, fmt.Errorf("edit %d: invalid range [%d,%d)", i, e.Start, e.End)
		case e.End > len(source):
			return nil, fmt.Errorf("edit %d: range [%d,%d) out of bounds", i, e.Start, e.End)
		case e.Start < pos:
			return nil, fmt.Errorf("edit %d: overlaps previous edit", i)
		}
		out.Write(source[pos:e.Start])
		out.Write(e.Replacement)
		pos = e.End
	}
	out.Write(source[pos:])
	return out.Bytes(), nil
}
