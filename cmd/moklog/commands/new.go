package commands

import (
	"fmt"
	"os"
	"time"

	"git.home.luguber.info/inful/moklog/internal/content"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/scaffold"
)

// NewCmd implements the 'new' command.
type NewCmd struct {
	Path     string   `arg:"" help:"Content-relative directory of the document (e.g. blog/my-post)"`
	Title    string   `short:"t" required:"" help:"Document title"`
	Kind     string   `short:"k" default:"page" enum:"page,category,series" help:"Front matter section (page, category, series)"`
	Lang     string   `short:"l" help:"Create a translation in this language instead of the primary document"`
	Tags     []string `help:"Tags, comma separated"`
	Author   []string `help:"Authors, comma separated"`
	RSS      bool     `name:"rss" help:"Publish an Atom feed of the document's children"`
	Draft    bool     `help:"Mark the document as a draft"`
	Template string   `type:"existingfile" help:"text/template file used for the body"`
}

func (n *NewCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	doc := scaffold.Document{
		Path:    n.Path,
		Title:   n.Title,
		Kind:    scaffold.Kind(n.Kind),
		Lang:    n.Lang,
		Authors: n.Author,
		Tags:    n.Tags,
		RSS:     n.RSS,
		Draft:   n.Draft,
		Date:    time.Now().In(cfg.Location()).Truncate(time.Second),
	}
	if len(doc.Authors) == 0 && cfg.Site.Author != "" {
		doc.Authors = []string{cfg.Site.Author}
	}
	if n.Template != "" {
		// #nosec G304 -- the template path is an explicit CLI argument.
		body, rerr := os.ReadFile(n.Template)
		if rerr != nil {
			return errors.WrapError(rerr, errors.CategoryFileSystem, "read body template").Build()
		}
		doc.Body = string(body)
	}

	path, err := scaffold.Create(cfg.Content.Dir, doc, content.NewNameValidator(cfg.Content.ReservedNames...))
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
