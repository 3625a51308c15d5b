// Command tokens runs the credential service and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/tokens/internal/tokens/app"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tokens",
		Usage:   "invite codes, API tokens and their lifecycle webhooks",
		Version: app.BuildVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"TOKENS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			webhooksCommand(),
			housekeepingCommand(),
			devCommand(),
		},
	}
}
