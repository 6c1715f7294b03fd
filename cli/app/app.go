package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/auditoracle/audit-oracle/cli/query"
	"github.com/auditoracle/audit-oracle/cli/server"
	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "AuditOracle\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an audit oracle instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "audit-oracle"
	ctl.Version = config.Version
	ctl.Usage = "Contract trust scoring oracle"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	return ctl
}
