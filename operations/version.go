package operations

import (
	"fmt"
	"runtime"

	"github.com/evergreen-ci/shutdowncheck"
	"github.com/urfave/cli"
)

func Version() cli.Command {
	return cli.Command{
		Name:  "version",
		Usage: "prints the version of the command line tool",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "shutdowncheck %s (%s/%s)\n", shutdowncheck.ClientVersion, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
