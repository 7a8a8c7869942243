package markdown

import (
	"bytes"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// codeBlockRenderer replaces goldmark's fenced code block output with the
// lang-tag / code-block layout themes style against.
type codeBlockRenderer struct{}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(gmast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node gmast.Node, entering bool) (gmast.WalkStatus, error) {
	if !entering {
		return gmast.WalkContinue, nil
	}
	n := node.(*gmast.FencedCodeBlock)

	lang := ""
	if n.Info != nil {
		lang = string(n.Language(source))
	}

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	_, _ = w.WriteString("<pre>")
	if lang != "" {
		_, _ = w.WriteString(`<div class="lang-tag">`)
		_, _ = w.WriteString(html.EscapeString(lang))
		_, _ = w.WriteString("</div>")
	}
	_, _ = w.WriteString(`<div class="code-block"><code>`)
	_, _ = w.WriteString(Highlight(lang, code.String()))
	_, _ = w.WriteString("</code></div></pre>\n")
	return gmast.WalkSkipChildren, nil
}

// Highlight returns code as HTML with tokens wrapped in hl-<class> spans.
// Unknown languages, and any lexer failure, yield the escaped plain text.
func Highlight(lang, code string) (out string) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return html.EscapeString(code)
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return html.EscapeString(code)
	}

	defer func() {
		if recover() != nil {
			out = html.EscapeString(code)
		}
	}()

	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return html.EscapeString(code)
	}

	var b strings.Builder
	for tok := it(); tok != chroma.EOF; tok = it() {
		text := html.EscapeString(tok.Value)
		class := TokenClass(tok.Type)
		if class == "" || strings.TrimSpace(tok.Value) == "" {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span class="hl-`)
		b.WriteString(class)
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString("</span>")
	}
	return b.String()
}

// TokenClass maps a chroma token type to the class suffix used in
// highlighted output. Plain text maps to "".
func TokenClass(t chroma.TokenType) string {
	switch t {
	case chroma.KeywordType, chroma.NameClass:
		return "type"
	case chroma.KeywordConstant, chroma.NameConstant:
		return "constant"
	case chroma.NameFunction, chroma.NameFunctionMagic:
		return "function"
	case chroma.NameBuiltin, chroma.NameBuiltinPseudo:
		return "builtin"
	case chroma.NameTag:
		return "tag"
	case chroma.NameAttribute:
		return "attribute"
	case chroma.NameDecorator:
		return "decorator"
	case chroma.NameVariable, chroma.NameVariableClass, chroma.NameVariableGlobal, chroma.NameVariableInstance:
		return "variable"
	case chroma.CommentPreproc:
		return "preproc"
	case chroma.GenericDeleted:
		return "deleted"
	case chroma.GenericInserted:
		return "inserted"
	case chroma.GenericHeading, chroma.GenericSubheading:
		return "title"
	case chroma.GenericEmph:
		return "emphasis"
	case chroma.GenericStrong:
		return "strong"
	}

	switch {
	case t.InCategory(chroma.Keyword):
		return "keyword"
	case t.InSubCategory(chroma.LiteralString):
		return "string"
	case t.InSubCategory(chroma.LiteralNumber):
		return "number"
	case t.InCategory(chroma.Literal):
		return "constant"
	case t.InCategory(chroma.Comment):
		return "comment"
	case t.InCategory(chroma.Operator):
		return "operator"
	case t.InCategory(chroma.Punctuation):
		return "punctuation"
	}
	return ""
}
