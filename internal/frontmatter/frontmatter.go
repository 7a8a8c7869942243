package frontmatter

import (
	"bytes"
)

// Delimiter is the line separating the TOML front matter from the body.
const Delimiter = "==="

// Style captures formatting details needed for stable rewriting.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Split separates front matter from the body at the first line equal to
// Delimiter (trailing blanks and a CR are ignored). If no such line exists,
// had is false, front is nil and body is the full input.
func Split(content []byte) (front []byte, body []byte, had bool, style Style) {
	style = detectStyle(content)

	offset := 0
	for offset <= len(content) {
		end := bytes.IndexByte(content[offset:], '\n')
		lineEnd, next := len(content), len(content)+1
		if end >= 0 {
			lineEnd = offset + end
			next = lineEnd + 1
		}
		line := bytes.TrimRight(content[offset:lineEnd], " \t\r")
		if string(line) == Delimiter {
			bodyStart := next
			if bodyStart > len(content) {
				bodyStart = len(content)
			}
			return content[:offset], content[bodyStart:], true, style
		}
		offset = next
	}
	return nil, content, false, style
}

// Join reassembles a document from raw front matter and body.
//
// If had is false, Join returns body as-is.
func Join(front []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}

	out := make([]byte, 0, len(front)+len(Delimiter)+2*len(nl)+len(body))
	out = append(out, front...)
	if len(front) > 0 && !bytes.HasSuffix(front, []byte("\n")) {
		out = append(out, nl...)
	}
	out = append(out, Delimiter...)
	out = append(out, nl...)
	out = append(out, body...)
	return out
}

func detectStyle(content []byte) Style {
	newline := "\n"
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		newline = "\r\n"
	}

	return Style{
		Newline:            newline,
		HasTrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}
}
