package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/credgate/internal/cli/output"
)

// printData writes data to stdout in the format selected by the
// global --output flag.
func printData(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, data)
}
