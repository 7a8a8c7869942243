package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/moklog/internal/store"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Limit int    `short:"n" default:"10" help:"Number of builds to list"`
	Page  string `help:"Print the committed HTML of this logical path instead"`
}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		fmt.Println("No store configured (store.path); builds are not recorded")
		return nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	if s.Page != "" {
		page, perr := st.Page(ctx, s.Page)
		if perr != nil {
			return perr
		}
		_, err = os.Stdout.Write(page.HTML)
		return err
	}

	builds, err := st.Builds(ctx, s.Limit)
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		fmt.Println("No committed builds")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMITTED\tTRIGGER\tARTIFACTS\tADDED\tREMOVED\tUNCHANGED")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			b.ID, b.Committed.Local().Format(time.DateTime), b.Trigger, b.Artifacts, b.Added, b.Removed, b.Unchanged)
	}
	return tw.Flush()
}
