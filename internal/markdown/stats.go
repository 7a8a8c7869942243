package markdown

import (
	"bytes"
	"math"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// WordsPerMinute is the reading speed behind Stats.ReadingSeconds.
const WordsPerMinute = 150

type Stats struct {
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	CJK            int `json:"cjk"`
	Whitespace     int `json:"whitespace"`
	ReadingSeconds int `json:"reading_seconds"`
	ReadingMinutes int `json:"reading_minutes"`
}

// Count computes statistics for plain text. Every CJK rune counts as a word
// of its own.
func Count(s string) Stats {
	var st Stats
	inWord := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			st.Whitespace++
			inWord = false
			continue
		case isCJK(r):
			st.CJK++
			st.Words++
			inWord = false
		case !inWord:
			st.Words++
			inWord = true
		}
		st.Characters++
	}

	st.ReadingSeconds = int(math.Round(float64(st.Words) * 60 / WordsPerMinute))
	st.ReadingMinutes = int(math.Ceil(float64(st.ReadingSeconds) / 60))
	return st
}

// CountHTML computes statistics over the text content of an HTML fragment,
// ignoring preformatted blocks, scripts and styles.
func CountHTML(fragment []byte) Stats {
	z := html.NewTokenizer(bytes.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return Count(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipsText(name) {
				skip++
			}
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipsText(name) && skip > 0 {
				skip--
			}
			if isBlock(name) {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func skipsText(tag []byte) bool {
	switch string(tag) {
	case "pre", "script", "style":
		return true
	}
	return false
}

func isBlock(tag []byte) bool {
	switch string(tag) {
	case "p", "li", "ul", "ol", "div", "blockquote", "table", "tr", "td", "th",
		"h1", "h2", "h3", "h4", "h5", "h6", "pre", "dd", "dt":
		return true
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
