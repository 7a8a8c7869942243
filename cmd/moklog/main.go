package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/moklog/cmd/moklog/commands"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("moklog"),
		kong.Description("Static site builder for markdown content trees."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, &cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
