// Command intellivest manages the portfolio from the terminal over the same
// services and storage as intellivest-server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "Path to intellivest.toml (defaults to INTELLIVEST_CONFIG or the binary directory)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// register adds the intellivest subcommands to c.
func register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "positions")
	c.Register(&sellCmd{}, "positions")
	c.Register(&editCmd{}, "positions")
	c.Register(&deleteCmd{}, "positions")
	c.Register(&summaryCmd{}, "positions")

	c.Register(&recordsCmd{}, "ledger")
	c.Register(&editRecordCmd{}, "ledger")
	c.Register(&seriesCmd{}, "ledger")
	c.Register(&chartCmd{}, "ledger")

	c.Register(&refreshCmd{}, "prices")
	c.Register(&clearLimitCmd{}, "prices")

	c.Register(&versionCmd{}, "")
}
