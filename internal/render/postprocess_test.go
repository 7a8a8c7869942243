package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/moklog/internal/assets"
)

func TestPostProcess_RewritesKnownAssets(t *testing.T) {
	store := assets.NewStore()
	logo, err := store.Register("blog/post/logo.png", []byte("png"))
	require.NoError(t, err)
	css, err := store.Register("theme/stylesheets/site.css", []byte("body{}"))
	require.NoError(t, err)
	r := &Renderer{store: store}

	in := `<link rel="stylesheet" href="/theme/stylesheets/site.css">` +
		`<a href="logo.png?v=1#top">x</a>` +
		`<a href="https://example.com/logo.png">abs</a>` +
		`<a href="//cdn.example.com/logo.png">proto</a>` +
		`<a href="#frag">frag</a>` +
		`<a href="mailto:me@example.com">mail</a>` +
		`<img src="data:image/png;base64,AAAA">` +
		`<a href="missing.png">missing</a>` +
		`<p>text &amp; more</p>`

	out, err := r.postProcess("/blog/post", []byte(in))
	require.NoError(t, err)
	got := string(out)

	assert.Contains(t, got, `href="`+store.URL(css)+`"`)
	assert.Contains(t, got, `href="`+store.URL(logo)+`?v=1#top"`)
	assert.Contains(t, got, `href="https://example.com/logo.png"`)
	assert.Contains(t, got, `href="//cdn.example.com/logo.png"`)
	assert.Contains(t, got, `href="#frag"`)
	assert.Contains(t, got, `href="mailto:me@example.com"`)
	assert.Contains(t, got, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, got, `href="missing.png"`)
	assert.Contains(t, got, `<p>text &amp; more</p>`)
}

func TestPostProcess_MediaHints(t *testing.T) {
	r := &Renderer{store: assets.NewStore()}
	out, err := r.postProcess("/", []byte(`<video src="https://v.example/a.mp4"></video><iframe src="https://x"></iframe><div>keep</div>`))
	require.NoError(t, err)
	got := string(out)

	assert.Contains(t, got, `<video src="https://v.example/a.mp4" loading="lazy" preload="metadata">`)
	assert.Contains(t, got, `<iframe src="https://x" loading="lazy">`)
	assert.Contains(t, got, `<div>keep</div>`)
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("a", 210)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "short content kept whole",
			in:   "<p>one</p><p>two</p>",
			want: "<p>one</p><p>two</p>",
		},
		{
			name: "stops at next paragraph",
			in:   "<p>" + long + "</p><p>second</p>",
			want: "<p>" + long + "</p>",
		},
		{
			name: "closes open elements",
			in:   "<div><p>" + long + "</p><p>second</p></div>",
			want: "<div><p>" + long + "</p></div>",
		},
		{
			name: "non paragraph elements continue",
			in:   "<p>" + long + "</p><ul><li>item</li></ul><p>x</p>",
			want: "<p>" + long + "</p><ul><li>item</li></ul>",
		},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize([]byte(tt.in), SummaryLimit))
		})
	}
}

func TestSplitLog(t *testing.T) {
	body := "intro\n@ 2024-01-01\none\n```\n@ 2020-01-01\n```\n@ 2024-01-03T10:00:00+02:00\ntwo\n"
	intro, entries, err := splitLog([]byte(body), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "intro\n", string(intro))
	require.Len(t, entries, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), entries[0].date)
	assert.Equal(t, "one\n```\n@ 2020-01-01\n```\n", string(entries[0].body))
	assert.True(t, entries[1].date.Equal(time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "two\n", string(entries[1].body))

	_, _, err = splitLog([]byte("@ yesterday\n"), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestRedirectHTML_EscapesTarget(t *testing.T) {
	out := string(RedirectHTML(`/a?x="1"&y=2`))
	assert.Contains(t, out, `url=/a?x=&#34;1&#34;&amp;y=2`)
}
