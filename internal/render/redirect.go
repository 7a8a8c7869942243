package render

import (
	"html"
	"path"
	"strings"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/frontmatter"
)

// RedirectHTML is a minimal page that forwards browsers to target.
func RedirectHTML(target string) []byte {
	t := html.EscapeString(target)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	b.WriteString(`<meta http-equiv="refresh" content="0; url=` + t + `">`)
	b.WriteString(`<link rel="canonical" href="` + t + `">`)
	b.WriteString("<title>Redirecting</title></head>")
	b.WriteString(`<body><a href="` + t + `">` + t + "</a></body></html>\n")
	return []byte(b.String())
}

func (r *Renderer) redirectOutput(base Output, target string) Output {
	base.Kind = OutputRedirect
	base.Redirect = target
	base.HTML = RedirectHTML(target)
	base.Indexed = false
	return base
}

// aliases produces one redirect per redirect_from entry, pointing at the node.
func (r *Renderer) aliases(node *content.Node, meta *frontmatter.ConfigMeta) []Output {
	var out []Output
	for _, from := range meta.RedirectFrom {
		from = strings.TrimSpace(from)
		if from == "" {
			continue
		}
		p := path.Clean("/" + strings.Trim(from, "/"))
		if p == node.Path {
			continue
		}
		out = append(out, Output{
			Kind:     OutputRedirect,
			Path:     p,
			Node:     node.Path,
			Lang:     r.site.DefaultLanguage.String(),
			Redirect: node.Path,
			HTML:     RedirectHTML(node.Path),
		})
	}
	return out
}
