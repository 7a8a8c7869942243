package markdown

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_FencedCodeLayout(t *testing.T) {
	doc, err := New(Options{}).Render([]byte("```go\nfunc main() {}\n```\n"))
	require.NoError(t, err)

	out := string(doc.HTML)
	assert.Contains(t, out, `<pre><div class="lang-tag">go</div><div class="code-block"><code>`)
	assert.Contains(t, out, `<span class="hl-keyword">func</span>`)
	assert.Contains(t, out, "</code></div></pre>")
}

func TestRender_FenceWithoutLanguage(t *testing.T) {
	doc, err := New(Options{}).Render([]byte("```\n<b>&\n```\n"))
	require.NoError(t, err)

	out := string(doc.HTML)
	assert.NotContains(t, out, "lang-tag")
	assert.Contains(t, out, `<div class="code-block"><code>&lt;b&gt;&amp;`)
}

func TestHighlight_UnknownLanguageEscapes(t *testing.T) {
	assert.Equal(t, "&lt;b&gt; &amp; x", Highlight("no-such-language", "<b> & x"))
	assert.Equal(t, "a &lt; b", Highlight("", "a < b"))
}

func TestRender_HeadingIDsMatchTOC(t *testing.T) {
	body := []byte("# Hello World\n\nText.\n\n## Hello World\n\n## Custom {#mine}\n")
	doc, err := New(Options{}).Render(body)
	require.NoError(t, err)

	out := string(doc.HTML)
	assert.Contains(t, out, `id="hello-world"`)
	assert.Contains(t, out, `id="hello-world-1"`)
	assert.Contains(t, out, `id="mine"`)

	require.Len(t, doc.Headings, 3)
	assert.Equal(t, Heading{Level: 1, ID: "hello-world", Text: "Hello World"}, doc.Headings[0])
	assert.Equal(t, "hello-world-1", doc.Headings[1].ID)
	assert.Equal(t, Heading{Level: 2, ID: "mine", Text: "Custom"}, doc.Headings[2])
}

func TestRender_RawHTML(t *testing.T) {
	doc, err := New(Options{}).Render([]byte("<div class=\"x\">raw</div>\n"))
	require.NoError(t, err)
	assert.Contains(t, string(doc.HTML), `<div class="x">raw</div>`)

	doc, err = New(Options{DisableRawHTML: true}).Render([]byte("<div class=\"x\">raw</div>\n"))
	require.NoError(t, err)
	assert.NotContains(t, string(doc.HTML), `<div class="x">`)
}

func TestRender_Table(t *testing.T) {
	doc, err := New(Options{}).Render([]byte("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	require.NoError(t, err)
	assert.Contains(t, string(doc.HTML), "<table>")
}

func headingsOf(t *testing.T, body string) []Heading {
	t.Helper()
	doc, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)
	return doc.Headings
}

func TestHeadings_SkipFences(t *testing.T) {
	headings := headingsOf(t, "# One\n\n```sh\n# comment\n```\n\n~~~~\n# tilde\n~~~\n# still inside\n~~~~\n\n## Two ##\n")

	require.Len(t, headings, 2)
	assert.Equal(t, "One", headings[0].Text)
	assert.Equal(t, Heading{Level: 2, ID: "two", Text: "Two"}, headings[1])
}

func TestHeadings_UnclosedFence(t *testing.T) {
	headings := headingsOf(t, "# Before\n```\n# not a heading\n## nor this\n")
	require.Len(t, headings, 1)
	assert.Equal(t, "before", headings[0].ID)
}

func TestHeadings_NotHeadings(t *testing.T) {
	assert.Empty(t, headingsOf(t, "#hashtag\n\n    # indented code\n\n####### seven\n"))
}

func TestHeadings_SetextAndNested(t *testing.T) {
	body := "Intro\n=====\n\n## Intro\n\n> ## Quoted\n\n## Quoted\n\n- ### In a *list*\n"
	doc, err := New(Options{}).Render([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, []Heading{
		{Level: 1, ID: "intro", Text: "Intro"},
		{Level: 2, ID: "intro-1", Text: "Intro"},
		{Level: 2, ID: "quoted", Text: "Quoted"},
		{Level: 2, ID: "quoted-1", Text: "Quoted"},
		{Level: 3, ID: "in-a-list", Text: "In a list"},
	}, doc.Headings)

	anchors := regexp.MustCompile(`href="#([^"]+)"`).FindAllStringSubmatch(doc.TOC, -1)
	require.Len(t, anchors, len(doc.Headings))
	for i, m := range anchors {
		assert.Equal(t, doc.Headings[i].ID, m[1])
		assert.Contains(t, string(doc.HTML), `id="`+m[1]+`"`)
	}
	assert.Contains(t, string(doc.HTML), `<h1 id="intro">Intro</h1>`)
	assert.Contains(t, string(doc.HTML), `<h2 id="intro-1">Intro</h2>`)
}

func TestRenderTOC(t *testing.T) {
	tests := []struct {
		name     string
		headings []Heading
		want     string
	}{
		{name: "empty", headings: nil, want: ""},
		{
			name:     "nested",
			headings: []Heading{{2, "a", "A"}, {3, "b", "B"}, {2, "c", "C"}},
			want:     `<ul><li><a href="#a">A</a><ul><li><a href="#b">B</a></li></ul></li><li><a href="#c">C</a></li></ul>`,
		},
		{
			name:     "shallower than first",
			headings: []Heading{{3, "a", "A"}, {2, "b", "B"}},
			want:     `<ul><li><a href="#a">A</a></li><li><a href="#b">B</a></li></ul>`,
		},
		{
			name:     "escaped",
			headings: []Heading{{1, "x", "<T>"}},
			want:     `<ul><li><a href="#x">&lt;T&gt;</a></li></ul>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTOC(tt.headings))
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!"))
	assert.Equal(t, "go-lang", Slugify("  Go_Lang  "))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestCount(t *testing.T) {
	st := Count("hello world 你好")
	assert.Equal(t, 4, st.Words)
	assert.Equal(t, 2, st.CJK)
	assert.Equal(t, 2, st.Whitespace)
	assert.Equal(t, 12, st.Characters)
	assert.Equal(t, 2, st.ReadingSeconds)
	assert.Equal(t, 1, st.ReadingMinutes)

	assert.Equal(t, Stats{}, Count(""))

	long := Count(strings.Repeat("word ", 300))
	assert.Equal(t, 300, long.Words)
	assert.Equal(t, 120, long.ReadingSeconds)
	assert.Equal(t, 2, long.ReadingMinutes)
}

func TestCountHTML_IgnoresMarkupAndCode(t *testing.T) {
	st := CountHTML([]byte("<p>one <em>two</em></p><pre><code>skip me</code></pre><p>three</p>"))
	assert.Equal(t, 3, st.Words)
}

func TestExpandShortcodes(t *testing.T) {
	var calls []string
	call := func(name string, args map[string]string) (string, error) {
		calls = append(calls, name)
		return "<" + name + ":" + args["src"] + ">", nil
	}

	body := "a {{< video src=\"x.mp4\" >}} b\n```\n{{< video src=\"y\" >}}\n```\n`{{< video >}}` {{< note src='z' >}}\n"
	out, err := ExpandShortcodes([]byte(body), call)
	require.NoError(t, err)

	want := "a <video:x.mp4> b\n```\n{{< video src=\"y\" >}}\n```\n`{{< video >}}` <note:z>\n"
	assert.Equal(t, want, string(out))
	assert.Equal(t, []string{"video", "note"}, calls)
}

func TestExpandShortcodes_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := ExpandShortcodes([]byte("{{< bad >}}"), func(string, map[string]string) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestExpandShortcodes_NoneIsIdentity(t *testing.T) {
	body := []byte("plain {{ not a shortcode }}")
	out, err := ExpandShortcodes(body, nil)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestApplyEdits(t *testing.T) {
	out, err := ApplyEdits([]byte("hello world"), []Edit{
		{Start: 6, End: 11, Replacement: []byte("there")},
		{Start: 0, End: 5, Replacement: []byte("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(out))

	_, err = ApplyEdits([]byte("abc"), []Edit{{Start: 0, End: 2}, {Start: 1, End: 3}})
	require.Error(t, err)

	_, err = ApplyEdits([]byte("abc"), []Edit{{Start: 2, End: 9}})
	require.Error(t, err)
}
