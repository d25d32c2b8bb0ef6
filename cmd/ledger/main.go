// Command ledger records transactions and produces spending reports.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"ledger/internal/cli"
)

var (
	verbose    = flag.Bool("v", false, "Enable debug logging")
	configFile = flag.String("config", "", "YAML configuration file (overrides LEDGER_CONFIG_FILE)")
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	a := &app{}
	register(commander, a)

	flag.Parse()
	if *configFile != "" {
		os.Setenv("LEDGER_CONFIG_FILE", *configFile)
	}
	a.verbose = *verbose

	ctx, stop := cli.SignalContext(context.Background())
	status := commander.Execute(ctx)
	stop()
	a.close()
	os.Exit(int(status))
}

func register(c *subcommands.Commander, a *app) {
	c.Register(&addCmd{app: a}, "transactions")
	c.Register(&listCmd{app: a}, "transactions")
	c.Register(&updateCmd{app: a}, "transactions")
	c.Register(&deleteCmd{app: a}, "transactions")

	c.Register(&reportCmd{app: a}, "reports")
	c.Register(&requestCmd{app: a}, "reports")
	c.Register(&resultsCmd{app: a}, "reports")
}
